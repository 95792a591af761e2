// Command synthlearn generates synthetic learner-behavior datasets and serves
// the generation API. Scenario presets and config files are decoded here into
// GenerationParams; the core never reads configuration itself.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/synthlearn/synthlearn/internal/export"
	"github.com/synthlearn/synthlearn/internal/generator"
	"github.com/synthlearn/synthlearn/internal/server"
	"github.com/synthlearn/synthlearn/internal/storage"
	"github.com/synthlearn/synthlearn/pkg/models"
)

var logger = logrus.New()

func main() {
	if err := rootCmd().Execute(); err != nil {
		logger.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "synthlearn",
		Short: "Synthetic learner-behavior dataset generator",
		Long: `synthlearn produces statistically realistic, non-real student cognitive and
behavioral records under an explicit, auditable privacy budget.

The privacy-attack battery it reports on is an empirical best-effort risk
estimator, not a formal worst-case privacy proof.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd)
		},
	}

	cmd.PersistentFlags().String("config", "", "config file (default synthlearn.yaml)")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(generateCmd())
	cmd.AddCommand(serveCmd())
	return cmd
}

func initConfig(cmd *cobra.Command) error {
	if cfg, _ := cmd.Flags().GetString("config"); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.SetConfigName("synthlearn")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.synthlearn")
	}
	viper.SetEnvPrefix("SYNTHLEARN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	level, _ := cmd.Flags().GetString("log-level")
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(parsed)
	return nil
}

func generateCmd() *cobra.Command {
	var (
		preset       string
		students     int
		seed         int64
		seedSet      bool
		startStr     string
		endStr       string
		epsilon      float64
		delta        float64
		kAnonymity   int
		jsonPath     string
		profilesPath string
		sessionsPath string
		store        bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := buildParams(preset, students, startStr, endStr, epsilon, delta, kAnonymity)
			if err != nil {
				return err
			}
			seedSet = cmd.Flags().Changed("seed")
			if seedSet {
				params.Seed = &seed
			}

			assembler := generator.NewAssembler(nil, logger)
			dataset, err := assembler.Generate(cmd.Context(), params)
			if err != nil {
				return err
			}

			for _, warning := range dataset.QualityMetrics.Warnings {
				logger.Warn(warning)
			}

			if err := writeOutputs(dataset, jsonPath, profilesPath, sessionsPath); err != nil {
				return err
			}

			if store {
				if err := storeDataset(cmd.Context(), dataset); err != nil {
					return err
				}
			}

			logger.WithFields(logrus.Fields{
				"profiles": len(dataset.Profiles),
				"sessions": len(dataset.Sessions),
				"risk":     dataset.QualityMetrics.PrivacyMetrics.ReidentificationRisk,
			}).Info("Generation complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "scenario preset (small-pilot, classroom, cohort-study)")
	cmd.Flags().IntVar(&students, "students", 0, "student count (overrides preset)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "deterministic seed (omit for an entropy seed)")
	cmd.Flags().StringVar(&startStr, "start", "", "time range start (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&endStr, "end", "", "time range end (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().Float64Var(&epsilon, "epsilon", 0, "epsilon budget (overrides preset)")
	cmd.Flags().Float64Var(&delta, "delta", 0, "delta privacy (overrides preset)")
	cmd.Flags().IntVar(&kAnonymity, "k", 0, "k-anonymity floor (overrides preset)")
	cmd.Flags().StringVar(&jsonPath, "json", "", "write full dataset JSON to this path")
	cmd.Flags().StringVar(&profilesPath, "profiles-csv", "", "write profiles CSV to this path")
	cmd.Flags().StringVar(&sessionsPath, "sessions-csv", "", "write sessions CSV to this path")
	cmd.Flags().BoolVar(&store, "store", false, "persist the dataset to postgres (storage.postgres.dsn)")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the generation API",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg server.Config
			if err := viper.UnmarshalKey("server", &cfg); err != nil {
				return fmt.Errorf("invalid server config: %w", err)
			}

			var cache storage.DatasetCache
			if viper.IsSet("storage.redis.addr") {
				var redisCfg storage.RedisConfig
				if err := viper.UnmarshalKey("storage.redis", &redisCfg); err != nil {
					return fmt.Errorf("invalid redis config: %w", err)
				}
				redisCache, err := storage.NewRedisCache(&redisCfg, logger)
				if err != nil {
					return err
				}
				defer redisCache.Close()
				cache = redisCache
			}

			assembler := generator.NewAssembler(nil, logger)
			srv := server.NewServer(&cfg, assembler, cache, logger)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logger.WithField("signal", sig).Info("Shutting down")
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				return srv.Shutdown(ctx)
			}
		},
	}
}

// buildParams layers CLI flags over a preset over built-in defaults.
func buildParams(preset string, students int, startStr, endStr string, epsilon, delta float64, k int) (models.GenerationParams, error) {
	params, err := presetParams(preset)
	if err != nil {
		return models.GenerationParams{}, err
	}

	if students > 0 {
		params.StudentCount = students
	}
	if epsilon > 0 {
		params.PrivacyParams.EpsilonBudget = epsilon
	}
	if delta > 0 {
		params.PrivacyParams.DeltaPrivacy = delta
	}
	if k > 0 {
		params.PrivacyParams.KAnonymity = k
	}

	if startStr != "" {
		t, err := parseTime(startStr)
		if err != nil {
			return models.GenerationParams{}, err
		}
		params.TimeRange.Start = t
	}
	if endStr != "" {
		t, err := parseTime(endStr)
		if err != nil {
			return models.GenerationParams{}, err
		}
		params.TimeRange.End = t
	}

	return params, nil
}

func presetParams(preset string) (models.GenerationParams, error) {
	base := models.GenerationParams{
		StudentCount: 100,
		TimeRange: models.TimeRange{
			Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		PrivacyParams: models.PrivacyParams{EpsilonBudget: 1.0, DeltaPrivacy: 1e-5, KAnonymity: 3},
		QualityParams: models.QualityParams{NoiseLevelStd: 0.05, MissingDataRate: 0.02, OutlierRate: 0.03},
		RealismConstraints: models.RealismConstraints{
			EnforcePsychologicalConsistency:  true,
			ApplyEducationalResearchPatterns: true,
			IncludeIndividualVariability:     true,
			GenerateTemporalCorrelations:     true,
		},
	}

	switch preset {
	case "", "classroom":
		return base, nil
	case "small-pilot":
		base.StudentCount = 25
		base.TimeRange.End = base.TimeRange.Start.AddDate(0, 1, 0)
		return base, nil
	case "cohort-study":
		base.StudentCount = 1000
		base.TimeRange.End = base.TimeRange.Start.AddDate(0, 6, 0)
		base.PrivacyParams.KAnonymity = 5
		return base, nil
	default:
		return models.GenerationParams{}, fmt.Errorf("unknown preset %q", preset)
	}
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: use RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

func writeOutputs(dataset *models.Dataset, jsonPath, profilesPath, sessionsPath string) error {
	if jsonPath != "" {
		f, err := os.Create(jsonPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", jsonPath, err)
		}
		defer f.Close()
		exporter := &export.JSONExporter{Indent: true}
		if err := exporter.Export(f, dataset); err != nil {
			return err
		}
		logger.WithField("path", jsonPath).Info("Wrote dataset JSON")
	}

	csvExporter := &export.CSVExporter{}
	if profilesPath != "" {
		f, err := os.Create(profilesPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", profilesPath, err)
		}
		defer f.Close()
		if err := csvExporter.ExportProfiles(f, dataset.Profiles); err != nil {
			return err
		}
		logger.WithField("path", profilesPath).Info("Wrote profiles CSV")
	}
	if sessionsPath != "" {
		f, err := os.Create(sessionsPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", sessionsPath, err)
		}
		defer f.Close()
		if err := csvExporter.ExportSessions(f, dataset.Sessions); err != nil {
			return err
		}
		logger.WithField("path", sessionsPath).Info("Wrote sessions CSV")
	}
	return nil
}

func storeDataset(ctx context.Context, dataset *models.Dataset) error {
	var cfg storage.PostgresConfig
	if err := viper.UnmarshalKey("storage.postgres", &cfg); err != nil {
		return fmt.Errorf("invalid postgres config: %w", err)
	}

	store, err := storage.NewPostgresStore(&cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	return store.StoreDataset(ctx, dataset)
}
