// Package storage holds the persistence collaborators: a Postgres sink that
// batch-stores generated datasets and a Redis cache keyed by request hash.
// The generation core never touches either; callers hand it a finished
// Dataset.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/synthlearn/synthlearn/pkg/errors"
	"github.com/synthlearn/synthlearn/pkg/models"
)

// DatasetStore is the persistence boundary for finished datasets.
type DatasetStore interface {
	EnsureSchema(ctx context.Context) error
	StoreDataset(ctx context.Context, dataset *models.Dataset) error
	Close() error
}

var _ DatasetStore = (*PostgresStore)(nil)

// PostgresConfig holds connection settings for the Postgres sink.
type PostgresConfig struct {
	DSN             string        `json:"dsn" mapstructure:"dsn"`
	MaxOpenConns    int           `json:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// PostgresStore batch-stores generated datasets.
type PostgresStore struct {
	config *PostgresConfig
	db     *sql.DB
	logger *logrus.Logger
}

// NewPostgresStore opens the connection pool and verifies connectivity.
func NewPostgresStore(config *PostgresConfig, logger *logrus.Logger) (*PostgresStore, error) {
	if config == nil || config.DSN == "" {
		return nil, errors.NewConfigurationError(errors.CodeStorageError, "postgres DSN is required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to open postgres connection")
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
			"failed to ping postgres")
	}

	return &PostgresStore{config: config, db: db, logger: logger}, nil
}

// EnsureSchema creates the dataset tables when they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			student_id TEXT PRIMARY KEY,
			run_seed BIGINT NOT NULL,
			persona TEXT NOT NULL,
			age_group TEXT NOT NULL,
			academic_level TEXT NOT NULL,
			learning_velocity DOUBLE PRECISION NOT NULL,
			memory_retention DOUBLE PRECISION NOT NULL,
			confusion_tendency DOUBLE PRECISION NOT NULL,
			anxiety_sensitivity DOUBLE PRECISION NOT NULL,
			is_outlier BOOLEAN NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			student_id TEXT NOT NULL REFERENCES profiles(student_id),
			start_time TIMESTAMPTZ NOT NULL,
			duration_seconds BIGINT NOT NULL,
			questions_answered INT NOT NULL,
			correct_answers INT NOT NULL,
			concepts TEXT[] NOT NULL,
			engagement_score DOUBLE PRECISION NOT NULL,
			is_outlier BOOLEAN NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError,
				"failed to create schema")
		}
	}
	return nil
}

// StoreDataset writes profiles and sessions in one transaction using COPY.
func (s *PostgresStore) StoreDataset(ctx context.Context, dataset *models.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"failed to begin transaction")
	}
	defer tx.Rollback()

	if err := s.copyProfiles(tx, dataset); err != nil {
		return err
	}
	if err := s.copySessions(tx, dataset); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"failed to commit dataset")
	}

	s.logger.WithFields(logrus.Fields{
		"profiles": len(dataset.Profiles),
		"sessions": len(dataset.Sessions),
	}).Info("Stored dataset in postgres")
	return nil
}

func (s *PostgresStore) copyProfiles(tx *sql.Tx, dataset *models.Dataset) error {
	stmt, err := tx.Prepare(pq.CopyIn("profiles",
		"student_id", "run_seed", "persona", "age_group", "academic_level",
		"learning_velocity", "memory_retention", "confusion_tendency",
		"anxiety_sensitivity", "is_outlier"))
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"failed to prepare profile copy")
	}
	defer stmt.Close()

	for _, p := range dataset.Profiles {
		if _, err := stmt.Exec(
			p.StudentID, dataset.Seed, string(p.Persona),
			string(p.Demographics.AgeGroup), string(p.Demographics.AcademicLevel),
			p.LearningVelocity.BaseRate, p.MemoryRetention,
			p.StrugglePatterns.ConfusionTendency, p.StrugglePatterns.AnxietySensitivity,
			p.IsOutlier,
		); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
				fmt.Sprintf("failed to copy profile %s", p.StudentID))
		}
	}

	if _, err := stmt.Exec(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"failed to flush profile copy")
	}
	return nil
}

func (s *PostgresStore) copySessions(tx *sql.Tx, dataset *models.Dataset) error {
	stmt, err := tx.Prepare(pq.CopyIn("sessions",
		"session_id", "student_id", "start_time", "duration_seconds",
		"questions_answered", "correct_answers", "concepts",
		"engagement_score", "is_outlier"))
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"failed to prepare session copy")
	}
	defer stmt.Close()

	for i := range dataset.Sessions {
		sess := &dataset.Sessions[i]
		if _, err := stmt.Exec(
			sess.SessionID, sess.StudentID, sess.StartTime,
			int64(sess.Duration.Seconds()),
			sess.QuestionsAnswered, sess.CorrectAnswers,
			pq.Array(sess.ConceptsStudied),
			sess.EngagementScore, sess.IsOutlier,
		); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
				fmt.Sprintf("failed to copy session %s", sess.SessionID))
		}
	}

	if _, err := stmt.Exec(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"failed to flush session copy")
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
