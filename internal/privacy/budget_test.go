package privacy

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthlearn/synthlearn/pkg/errors"
	"github.com/synthlearn/synthlearn/pkg/models"
)

func newTestController(t *testing.T, eps, delta float64, k int) *Controller {
	t.Helper()
	c, err := NewController(models.PrivacyParams{
		EpsilonBudget: eps,
		DeltaPrivacy:  delta,
		KAnonymity:    k,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestNewControllerValidation(t *testing.T) {
	tests := []struct {
		name   string
		params models.PrivacyParams
	}{
		{"zero epsilon", models.PrivacyParams{EpsilonBudget: 0, DeltaPrivacy: 1e-5, KAnonymity: 3}},
		{"negative epsilon", models.PrivacyParams{EpsilonBudget: -1, DeltaPrivacy: 1e-5, KAnonymity: 3}},
		{"zero delta", models.PrivacyParams{EpsilonBudget: 1, DeltaPrivacy: 0, KAnonymity: 3}},
		{"delta of one", models.PrivacyParams{EpsilonBudget: 1, DeltaPrivacy: 1, KAnonymity: 3}},
		{"k below two", models.PrivacyParams{EpsilonBudget: 1, DeltaPrivacy: 1e-5, KAnonymity: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewController(tt.params, nil)
			require.Error(t, err)
			appErr, ok := err.(*errors.AppError)
			require.True(t, ok)
			assert.Equal(t, errors.CodeInvalidPrivacy, appErr.Code)
		})
	}
}

func TestAllocateLaplace(t *testing.T) {
	c := newTestController(t, 1.0, 1e-5, 3)

	scale, err := c.AllocateLaplace("test_op", 0.5, 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, scale, 1e-12)

	spentEps, spentDelta := c.Spent()
	assert.InDelta(t, 0.5, spentEps, 1e-12)
	assert.Zero(t, spentDelta)

	txs := c.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, "test_op", txs[0].OperationID)
}

func TestAllocateLaplaceExhaustsBudget(t *testing.T) {
	c := newTestController(t, 1.0, 1e-5, 3)

	_, err := c.AllocateLaplace("first", 0.8, 1.0)
	require.NoError(t, err)

	_, err = c.AllocateLaplace("second", 0.3, 1.0)
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeBudgetExceeded, appErr.Code)

	// A failed allocation must not change the ledger.
	spentEps, _ := c.Spent()
	assert.InDelta(t, 0.8, spentEps, 1e-12)
	assert.Len(t, c.Transactions(), 1)
}

func TestAllocateGaussianSigma(t *testing.T) {
	c := newTestController(t, 2.0, 1e-4, 3)

	sigma, err := c.AllocateGaussian("gauss_op", 1.0, 1e-5, 0.5)
	require.NoError(t, err)

	want := 0.5 * math.Sqrt(2*math.Log(1.25/1e-5)) / 1.0
	assert.InDelta(t, want, sigma, 1e-12)

	spentEps, spentDelta := c.Spent()
	assert.InDelta(t, 1.0, spentEps, 1e-12)
	assert.InDelta(t, 1e-5, spentDelta, 1e-18)
}

func TestAllocateGaussianDeltaExceeded(t *testing.T) {
	c := newTestController(t, 10.0, 1e-6, 3)

	_, err := c.AllocateGaussian("gauss_op", 1.0, 1e-5, 1.0)
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeBudgetExceeded, appErr.Code)
}

func TestPartitionReservesCapacity(t *testing.T) {
	c := newTestController(t, 1.0, 1e-5, 3)

	subs, err := c.Partition(4, 0.8)
	require.NoError(t, err)
	require.Len(t, subs, 4)

	// The carved 0.8 is reserved; only 0.2 remains for direct allocation.
	remEps, remDelta := c.Remaining()
	assert.InDelta(t, 0.2, remEps, 1e-12)
	assert.InDelta(t, 0.2e-5, remDelta, 1e-18)

	_, err = c.AllocateLaplace("too_big", 0.3, 1.0)
	require.Error(t, err)

	// Each sub-budget holds exactly its slice.
	for _, sub := range subs {
		subEps, subDelta := sub.Remaining()
		assert.InDelta(t, 0.2, subEps, 1e-12)
		assert.InDelta(t, 0.2e-5, subDelta, 1e-18)
	}
}

func TestPartitionAbsorbConservesBudget(t *testing.T) {
	// Property: for any valid split, spend in the subs plus spend in the
	// parent never exceeds the root budget, and the absorbed ledger equals
	// the sum of sub-ledgers.
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 50; trial++ {
		eps := 0.5 + rng.Float64()*4.5
		delta := math.Pow(10, -3-rng.Float64()*4)
		parts := 1 + rng.Intn(16)
		share := 0.1 + rng.Float64()*0.9

		c := newTestController(t, eps, delta, 3)
		subs, err := c.Partition(parts, share)
		require.NoError(t, err)

		wantSpent := 0.0
		wantTxs := 0
		for _, sub := range subs {
			subEps, _ := sub.Remaining()
			// Spend a random fraction of the sub-budget in a few draws.
			for i := 0; i < 3; i++ {
				e := subEps * rng.Float64() / 3
				if e <= 0 {
					continue
				}
				if _, err := sub.AllocateLaplace("trial_op", e, 1.0); err == nil {
					wantSpent += e
					wantTxs++
				}
			}
		}

		for _, sub := range subs {
			c.Absorb(sub)
		}

		spentEps, _ := c.Spent()
		assert.InDelta(t, wantSpent, spentEps, 1e-9)
		assert.LessOrEqual(t, spentEps, eps+1e-9)
		assert.Len(t, c.Transactions(), wantTxs)

		// Released reservations come back: the parent can spend the rest.
		remEps, _ := c.Remaining()
		assert.InDelta(t, eps-wantSpent, remEps, 1e-9)
	}
}

func TestPartitionRejectsOvercommit(t *testing.T) {
	c := newTestController(t, 1.0, 1e-5, 3)

	_, err := c.Partition(2, 0.9)
	require.NoError(t, err)

	// 90% already reserved; another 90% cannot be carved.
	_, err = c.Partition(2, 0.9)
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeBudgetExceeded, appErr.Code)
}

func TestApproveAggregate(t *testing.T) {
	c := newTestController(t, 1.0, 1e-5, 5)

	assert.True(t, c.ApproveAggregate("persona_share_fast_learner", 5))
	assert.True(t, c.ApproveAggregate("persona_share_steady_achiever", 12))
	assert.False(t, c.ApproveAggregate("persona_share_disengaged", 4))
	assert.False(t, c.ApproveAggregate("persona_share_anxious_student", 0))

	assert.Equal(t, 2, c.SuppressedCount())
	sups := c.Suppressions()
	require.Len(t, sups, 2)
	assert.Equal(t, "persona_share_disengaged", sups[0].Aggregate)
	assert.Equal(t, 4, sups[0].GroupSize)
	assert.Equal(t, 5, sups[0].Required)
}

func TestSampleLaplaceDeterministicAndCentered(t *testing.T) {
	a := rand.New(rand.NewSource(42))
	b := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		assert.Equal(t, SampleLaplace(a, 1.5), SampleLaplace(b, 1.5))
	}

	// Empirical mean of Laplace(0, b) tends to zero.
	rng := rand.New(rand.NewSource(1))
	sum := 0.0
	const n = 20000
	for i := 0; i < n; i++ {
		sum += SampleLaplace(rng, 1.0)
	}
	assert.InDelta(t, 0.0, sum/n, 0.05)
}

func TestSampleLaplaceZeroScale(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Zero(t, SampleLaplace(rng, 0))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.5, Clamp(0.5, 0, 1))
	assert.Equal(t, 0.0, Clamp(-2, 0, 1))
	assert.Equal(t, 1.0, Clamp(7, 0, 1))
}
