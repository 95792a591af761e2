// Package privacy implements the per-run privacy budget ledger, the noise
// mechanisms it meters, and the k-anonymity gate for released aggregates.
//
// Composition is simple additive summation, chosen for auditability over
// tighter composition theorems. Every noise-distorting draw in sampling and
// simulation routes through a Controller; no operation injects statistical
// noise outside the ledger.
package privacy

import (
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/synthlearn/synthlearn/pkg/errors"
	"github.com/synthlearn/synthlearn/pkg/models"
)

// Transaction records one budget expenditure.
type Transaction struct {
	OperationID string  `json:"operation_id"`
	Epsilon     float64 `json:"epsilon"`
	Delta       float64 `json:"delta"`
	NoiseScale  float64 `json:"noise_scale"`
}

// Suppression records an aggregate withheld by the k-anonymity gate.
type Suppression struct {
	Aggregate string `json:"aggregate"`
	GroupSize int    `json:"group_size"`
	Required  int    `json:"required"`
}

// Controller is the per-run privacy ledger. It tracks cumulative epsilon and
// delta spend against fixed budgets and enforces the k-anonymity floor before
// any aggregate is released.
//
// Under parallel generation the root controller is pre-partitioned into fixed
// per-worker sub-budgets (see Partition), so allocation outcomes never depend
// on worker scheduling. The mutex guards the merge step and any direct use.
type Controller struct {
	mu sync.Mutex

	epsilonBudget float64
	deltaBudget   float64
	kAnonymity    int

	spentEpsilon    float64
	spentDelta      float64
	reservedEpsilon float64
	reservedDelta   float64

	transactions []Transaction
	suppressions []Suppression

	logger *logrus.Logger
}

// NewController creates the ledger for one generation run.
func NewController(params models.PrivacyParams, logger *logrus.Logger) (*Controller, error) {
	if params.EpsilonBudget <= 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidPrivacy,
			fmt.Sprintf("epsilon budget must be positive, got %g", params.EpsilonBudget))
	}
	if params.DeltaPrivacy <= 0 || params.DeltaPrivacy >= 1 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidPrivacy,
			fmt.Sprintf("delta must be in (0, 1), got %g", params.DeltaPrivacy))
	}
	if params.KAnonymity < 2 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidPrivacy,
			fmt.Sprintf("k-anonymity must be at least 2, got %d", params.KAnonymity))
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Controller{
		epsilonBudget: params.EpsilonBudget,
		deltaBudget:   params.DeltaPrivacy,
		kAnonymity:    params.KAnonymity,
		logger:        logger,
	}, nil
}

// AllocateLaplace spends epsilon for one Laplace-mechanism draw and returns
// the noise scale b = sensitivity / epsilon. Delta cost is zero.
func (c *Controller) AllocateLaplace(operationID string, epsilon, sensitivity float64) (float64, error) {
	if epsilon <= 0 {
		return 0, errors.NewPrivacyError(errors.CodeBudgetExceeded,
			fmt.Sprintf("operation %s requested non-positive epsilon %g", operationID, epsilon))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkSpend(operationID, epsilon, 0); err != nil {
		return 0, err
	}

	scale := sensitivity / epsilon
	c.spentEpsilon += epsilon
	c.transactions = append(c.transactions, Transaction{
		OperationID: operationID,
		Epsilon:     epsilon,
		NoiseScale:  scale,
	})
	return scale, nil
}

// AllocateGaussian spends (epsilon, delta) for one Gaussian-mechanism draw and
// returns sigma = sensitivity * sqrt(2 ln(1.25/delta)) / epsilon.
func (c *Controller) AllocateGaussian(operationID string, epsilon, delta, sensitivity float64) (float64, error) {
	if epsilon <= 0 || delta <= 0 {
		return 0, errors.NewPrivacyError(errors.CodeBudgetExceeded,
			fmt.Sprintf("operation %s requested non-positive cost (eps=%g, delta=%g)", operationID, epsilon, delta))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkSpend(operationID, epsilon, delta); err != nil {
		return 0, err
	}

	sigma := sensitivity * math.Sqrt(2*math.Log(1.25/delta)) / epsilon
	c.spentEpsilon += epsilon
	c.spentDelta += delta
	c.transactions = append(c.transactions, Transaction{
		OperationID: operationID,
		Epsilon:     epsilon,
		Delta:       delta,
		NoiseScale:  sigma,
	})
	return sigma, nil
}

// checkSpend verifies the grant fits under budget minus outstanding
// reservations. Caller holds the mutex.
func (c *Controller) checkSpend(operationID string, epsilon, delta float64) error {
	const slack = 1e-12 // tolerate float accumulation at the boundary

	if c.spentEpsilon+c.reservedEpsilon+epsilon > c.epsilonBudget+slack {
		return errors.NewPrivacyError(errors.CodeBudgetExceeded,
			fmt.Sprintf("operation %s needs epsilon %g but only %g of %g remains",
				operationID, epsilon, c.epsilonBudget-c.spentEpsilon-c.reservedEpsilon, c.epsilonBudget))
	}
	if c.spentDelta+c.reservedDelta+delta > c.deltaBudget+slack {
		return errors.NewPrivacyError(errors.CodeBudgetExceeded,
			fmt.Sprintf("operation %s needs delta %g but only %g of %g remains",
				operationID, delta, c.deltaBudget-c.spentDelta-c.reservedDelta, c.deltaBudget))
	}
	return nil
}

// Partition carves `parts` fixed sub-budgets out of a share of the remaining
// budget, one per parallel worker. The carved capacity is reserved in the
// parent immediately, so the global invariant holds no matter how much each
// worker ultimately spends or in what order workers run.
func (c *Controller) Partition(parts int, share float64) ([]*Controller, error) {
	if parts <= 0 {
		return nil, errors.NewInternalError(fmt.Sprintf("partition parts must be positive, got %d", parts))
	}
	if share <= 0 || share > 1 {
		return nil, errors.NewInternalError(fmt.Sprintf("partition share must be in (0, 1], got %g", share))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	epsEach := c.epsilonBudget * share / float64(parts)
	deltaEach := c.deltaBudget * share / float64(parts)

	carvedEps := epsEach * float64(parts)
	carvedDelta := deltaEach * float64(parts)
	if c.spentEpsilon+c.reservedEpsilon+carvedEps > c.epsilonBudget+1e-12 {
		return nil, errors.NewPrivacyError(errors.CodeBudgetExceeded,
			fmt.Sprintf("partitioning %d x %g epsilon exceeds remaining budget", parts, epsEach))
	}

	c.reservedEpsilon += carvedEps
	c.reservedDelta += carvedDelta

	subs := make([]*Controller, parts)
	for i := range subs {
		subs[i] = &Controller{
			epsilonBudget: epsEach,
			deltaBudget:   deltaEach,
			kAnonymity:    c.kAnonymity,
			logger:        c.logger,
		}
	}
	return subs, nil
}

// Absorb merges a sub-controller's spend and audit trail back into the parent,
// releasing the unspent remainder of its reservation.
func (c *Controller) Absorb(sub *Controller) {
	sub.mu.Lock()
	spentEps := sub.spentEpsilon
	spentDelta := sub.spentDelta
	capEps := sub.epsilonBudget
	capDelta := sub.deltaBudget
	txs := sub.transactions
	sups := sub.suppressions
	sub.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.spentEpsilon += spentEps
	c.spentDelta += spentDelta
	c.reservedEpsilon = math.Max(0, c.reservedEpsilon-capEps)
	c.reservedDelta = math.Max(0, c.reservedDelta-capDelta)
	c.transactions = append(c.transactions, txs...)
	c.suppressions = append(c.suppressions, sups...)
}

// ApproveAggregate checks the k-anonymity floor for one aggregate statistic.
// Undersized groups are suppressed outright, never approximated, and the
// suppression is recorded.
func (c *Controller) ApproveAggregate(aggregate string, groupSize int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if groupSize >= c.kAnonymity {
		return true
	}

	c.suppressions = append(c.suppressions, Suppression{
		Aggregate: aggregate,
		GroupSize: groupSize,
		Required:  c.kAnonymity,
	})
	c.logger.WithFields(logrus.Fields{
		"aggregate":  aggregate,
		"group_size": groupSize,
		"k":          c.kAnonymity,
	}).Debug("Suppressed aggregate below k-anonymity floor")
	return false
}

// KAnonymity returns the configured k floor.
func (c *Controller) KAnonymity() int {
	return c.kAnonymity
}

// Spent returns cumulative (epsilon, delta) spend recorded in this ledger.
func (c *Controller) Spent() (float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spentEpsilon, c.spentDelta
}

// Remaining returns the unspent, unreserved (epsilon, delta) budget.
func (c *Controller) Remaining() (float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return math.Max(0, c.epsilonBudget-c.spentEpsilon-c.reservedEpsilon),
		math.Max(0, c.deltaBudget-c.spentDelta-c.reservedDelta)
}

// Transactions returns a copy of the audit trail.
func (c *Controller) Transactions() []Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Transaction, len(c.transactions))
	copy(out, c.transactions)
	return out
}

// Suppressions returns a copy of the recorded suppressions.
func (c *Controller) Suppressions() []Suppression {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Suppression, len(c.suppressions))
	copy(out, c.suppressions)
	return out
}

// SuppressedCount returns how many aggregates were withheld.
func (c *Controller) SuppressedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.suppressions)
}
