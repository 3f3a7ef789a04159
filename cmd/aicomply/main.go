// Command aicomply runs the EU AI Act compliance agents, either as a
// one-shot CLI run per agent or as an HTTP trigger service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/finpulse/aicomply/internal/agents"
	"github.com/finpulse/aicomply/internal/backend"
	"github.com/finpulse/aicomply/internal/config"
	"github.com/finpulse/aicomply/internal/dispatch"
	"github.com/finpulse/aicomply/internal/domain"
	"github.com/finpulse/aicomply/internal/policy"
	"github.com/finpulse/aicomply/internal/store"
	transport "github.com/finpulse/aicomply/internal/transport/http"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "aicomply",
		Short:         "EU AI Act compliance agents for PulseCredit",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		serveCmd(),
		classifyCmd(),
		docDraftCmd(),
		biasWatchCmd(),
		friaCmd(),
		conformityCmd(),
	)
	return root
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func newSuite(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*agents.Suite, error) {
	gate, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		return nil, fmt.Errorf("policy engine: %w", err)
	}

	factory := agents.Scripts()
	if cfg.BackendMode == config.BackendModeProxy {
		factory = func(string) backend.Backend {
			return backend.NewProxy(cfg.BackendURL, cfg.BackendAPIKey, cfg.BackendTimeout, cfg.BackendRetries)
		}
	}

	driver := dispatch.New(gate, log)
	return agents.NewSuite(driver, store.NewMemory(), factory,
		agents.WithThresholds(cfg.Thresholds),
		agents.WithMaxRounds(cfg.MaxRounds),
	), nil
}

// runOnce builds the suite, executes one agent run, and prints the
// terminal result as JSON. Failed runs exit non-zero.
func runOnce(cmd *cobra.Command, run func(ctx context.Context, s *agents.Suite) *domain.TerminalResult) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := newLogger(cfg)

	ctx := cmd.Context()
	suite, err := newSuite(ctx, cfg, log)
	if err != nil {
		return err
	}

	result := run(ctx, suite)
	if result.Kind == domain.TerminalDone {
		result.Transcript = nil
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if result.Failed() {
		return fmt.Errorf("run ended %s: %s", result.Kind, result.Error)
	}
	return nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP trigger service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			log := newLogger(cfg)

			suite, err := newSuite(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}

			server := transport.NewServer(transport.NewHandler(suite, log))
			go func() {
				addr := fmt.Sprintf(":%d", cfg.Port)
				log.Info().Str("addr", addr).Str("backend_mode", cfg.BackendMode).Msg("starting trigger service")
				if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("server failed")
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
}

func classifyCmd() *cobra.Command {
	var desc agents.SystemDescription
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify an AI system under the four-tier risk framework",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, func(ctx context.Context, s *agents.Suite) *domain.TerminalResult {
				return s.Classify(ctx, desc)
			})
		},
	}
	cmd.Flags().StringVar(&desc.Name, "name", "PulseCredit v2.1", "system name and version")
	cmd.Flags().StringVar(&desc.Purpose, "purpose", "Evaluates the creditworthiness of Dutch consumers and produces a credit score and lending decision.", "system purpose")
	cmd.Flags().StringVar(&desc.DeploymentContext, "deployment-context", "Consumer Credit Provider (Wft licence), Netherlands", "regulatory/sector context")
	cmd.Flags().BoolVar(&desc.SolePurposeFraud, "sole-purpose-fraud", false, "fraud detection is the sole purpose")
	return cmd
}

func docDraftCmd() *cobra.Command {
	var req agents.DocumentationRequest
	cmd := &cobra.Command{
		Use:   "docdraft",
		Short: "Generate an Annex IV technical documentation draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, func(ctx context.Context, s *agents.Suite) *domain.TerminalResult {
				return s.DraftDocumentation(ctx, req)
			})
		},
	}
	cmd.Flags().StringVar(&req.RegistryURI, "registry-uri", "mlflow://pulsecredit/v2.1.3", "model registry URI")
	cmd.Flags().StringVar(&req.CatalogRef, "catalog-ref", "datahub://credit/training-2024-q4", "data catalog reference")
	cmd.Flags().StringVar(&req.RiskTier, "risk-tier", "HIGH_RISK", "risk tier")
	cmd.Flags().StringVar(&req.SystemOwner, "system-owner", "", "signatory name and title")
	cmd.Flags().StringVar(&req.TargetDate, "target-date", "2026-07-31", "sign-off target date")
	return cmd
}

func biasWatchCmd() *cobra.Command {
	var periodStart, periodEnd string
	cmd := &cobra.Command{
		Use:   "biaswatch",
		Short: "Run one bias monitoring pass over a reporting period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, func(ctx context.Context, s *agents.Suite) *domain.TerminalResult {
				return s.RunBiasWatch(ctx, periodStart, periodEnd)
			})
		},
	}
	cmd.Flags().StringVar(&periodStart, "period-start", "", "period start (YYYY-MM-DD, default: 7 days before end)")
	cmd.Flags().StringVar(&periodEnd, "period-end", "", "period end (YYYY-MM-DD, default: today)")
	return cmd
}

func friaCmd() *cobra.Command {
	var req agents.FRIARequest
	cmd := &cobra.Command{
		Use:   "fria",
		Short: "Generate an Article 27 Fundamental Rights Impact Assessment draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, func(ctx context.Context, s *agents.Suite) *domain.TerminalResult {
				return s.GenerateFRIA(ctx, req)
			})
		},
	}
	cmd.Flags().StringVar(&req.SystemName, "system-name", "PulseCredit v2.1", "AI system name and version")
	cmd.Flags().StringVar(&req.AffectedPopulation, "affected-population", "Dutch consumers aged 18-75, approximately 18,000 applications/year", "affected persons and scale")
	cmd.Flags().StringVar(&req.RiskTier, "risk-tier", "HIGH_RISK", "risk tier")
	cmd.Flags().StringVar(&req.DPIAReference, "dpia-reference", "DPIA-2025-003", "existing GDPR DPIA reference")
	cmd.Flags().StringSliceVar(&req.SensitiveGroups, "sensitive-groups", nil, "sensitive groups at risk")
	return cmd
}

func conformityCmd() *cobra.Command {
	var req agents.ConformityRequest
	cmd := &cobra.Command{
		Use:   "conformity",
		Short: "Run an Annex VI conformity assessment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, func(ctx context.Context, s *agents.Suite) *domain.TerminalResult {
				return s.RunConformityCheck(ctx, req)
			})
		},
	}
	cmd.Flags().StringVar(&req.SystemID, "system-id", "pulsecredit-v2.1", "AI system identifier")
	cmd.Flags().StringVar(&req.RepositoryPath, "repository-path", "sharepoint://compliance/eu-ai-act/pulsecredit/", "compliance document repository")
	cmd.Flags().StringVar(&req.LogEndpoint, "log-endpoint", "https://logs.internal.finpulse.nl/api/ai-decisions/", "logging system endpoint")
	cmd.Flags().StringVar(&req.AssessmentType, "assessment-type", "Monthly Spot Check", "assessment type")
	return cmd
}
