// Package cli implements the verity command line on cobra.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
	"github.com/custodia-labs/verity/internal/logger"
)

// version is set at build time.
var version = "dev"

// skipBootstrap marks commands that run without services.
const skipBootstrap = "skip-bootstrap"

// Services holds everything the commands drive. Optional fields are nil
// when the backing provider is unavailable.
type Services struct {
	// UserID is the default owner for commands run without --user.
	UserID string

	// ServerAddr is the default listen address for serve.
	ServerAddr string

	Settings  driving.SettingsService
	Ingestion driving.IngestionService
	Pipeline  driving.Pipeline
	Worker    driving.EmbeddingWorker
	Status    driving.StatusService
	Answer    driving.AnswerService
	Tasks     driving.TaskService
	Documents driving.DocumentService
	Scheduler driving.Scheduler

	// Metrics serves the Prometheus registry.
	Metrics http.Handler

	// Warnings are printed before the command runs.
	Warnings []string
}

// Bootstrap builds the services once the environment is loaded. The
// returned func releases them.
type Bootstrap func(ctx context.Context) (*Services, func(), error)

var (
	bootstrap Bootstrap
	services  *Services
	cleanup   func()
)

// Global flags.
var (
	jsonOutput bool
	userFlag   string
	verbose    bool
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "verity",
	Short: "Ask questions of your compliance documents",
	Long: `Verity ingests compliance documents, embeds them and answers questions
grounded in their content.

Upload a document, process it, then ask:
  verity upload policy.pdf --process
  verity ask "How long must we retain audit logs?" --doc <doc-id>`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if cleanup != nil {
			cleanup()
			cleanup = nil
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&jsonOutput, "json", false, "output as JSON")
	flags.StringVarP(&userFlag, "user", "u", "", "act as this user (default from config user.id or $USER)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	flags.StringVar(&envFile, "env-file", "", "load environment from this file instead of ./.env")
}

// SetBootstrap registers the service builder used before each command.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetServices injects ready-built services, bypassing the bootstrap.
func SetServices(s *Services) {
	services = s
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command until it completes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCmd.SetOut(os.Stdout)
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if err := loadEnv(envFile); err != nil {
		return err
	}
	if cmd.Annotations[skipBootstrap] == "true" || services != nil || bootstrap == nil {
		return nil
	}

	built, release, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	services = built
	cleanup = release
	for _, w := range built.Warnings {
		cmd.PrintErrf("Warning: %s\n", w)
	}
	return nil
}

// loadEnv loads a .env file. A missing default file is not an error.
func loadEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// currentUser resolves the acting user.
func currentUser() string {
	if userFlag != "" {
		return userFlag
	}
	if services != nil {
		return services.UserID
	}
	return ""
}

// FormatError renders an error for the terminal. Declines and failures
// carry their kind.
func FormatError(err error) string {
	if askErr, ok := domain.AsAskError(err); ok {
		return fmt.Sprintf("%s: %s", askErr.Kind, askErr.Message)
	}
	return err.Error()
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func notConfigured(what string) error {
	return fmt.Errorf("%s not configured", what)
}
