package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/verity/internal/adapters/driving/api"
	"github.com/custodia-labs/verity/internal/connectors/filesystem"
	"github.com/custodia-labs/verity/internal/logger"
)

var (
	serveAddr        string
	serveNoScheduler bool
	serveWatchDir    string
	watchSettle      time.Duration
	watchNoProcess   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the JSON API under /api/v1 together with /healthz and /metrics.

The background scheduler runs alongside the server unless --no-scheduler is
given. With --watch, files dropped into the directory are uploaded and
processed.

The acting user is taken from the X-Verity-User header and defaults to the
configured user.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Upload files dropped into a directory",
	Long: `Watches a directory and uploads every new or rewritten file once it has
stopped changing. Uploads are processed unless --no-process is given.
Hidden files and subdirectories are ignored.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config server.addr)")
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "do not run background jobs")
	serveCmd.Flags().StringVar(&serveWatchDir, "watch", "", "also watch this directory for uploads")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", filesystem.DefaultSettle, "quiet period before a file is uploaded")
	watchCmd.Flags().BoolVar(&watchNoProcess, "no-process", false, "upload only")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if services == nil {
		return notConfigured("services")
	}
	logger.SetTimestamps(true)

	server, err := api.NewServer(&api.Ports{
		DefaultUser: currentUser(),
		Ingestion:   services.Ingestion,
		Pipeline:    services.Pipeline,
		Worker:      services.Worker,
		Status:      services.Status,
		Answer:      services.Answer,
		Tasks:       services.Tasks,
		Documents:   services.Documents,
		Scheduler:   services.Scheduler,
		Metrics:     services.Metrics,
	})
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = services.ServerAddr
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errs <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	if services.Scheduler != nil && !serveNoScheduler {
		run("scheduler", services.Scheduler.Start)
	}
	if serveWatchDir != "" {
		if services.Ingestion == nil {
			return notConfigured("ingestion service")
		}
		watcher := newWatcher(serveWatchDir, false)
		defer watcher.Close()
		run("watch", func(ctx context.Context) error { return watcher.Run(ctx, nil) })
	}

	cmd.Printf("Verity API listening on http://%s\n", addr)
	run("http", func(ctx context.Context) error { return server.Start(ctx, addr) })

	<-ctx.Done()
	if services.Scheduler != nil && !serveNoScheduler {
		if err := services.Scheduler.Stop(); err != nil {
			logger.For("serve").Error("stop scheduler: %v", err)
		}
	}
	wg.Wait()
	close(errs)
	return <-errs
}

func runWatch(cmd *cobra.Command, args []string) error {
	if services == nil || services.Ingestion == nil {
		return notConfigured("ingestion service")
	}
	logger.SetTimestamps(true)

	watcher := newWatcher(args[0], watchNoProcess)
	defer watcher.Close()
	if err := watcher.Validate(); err != nil {
		return err
	}

	report := make(chan filesystem.Outcome)
	done := make(chan error, 1)
	go func() {
		done <- watcher.Run(cmd.Context(), report)
		close(report)
	}()

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", args[0])
	for outcome := range report {
		switch {
		case outcome.Err != nil:
			cmd.PrintErrf("%s: %s\n", outcome.Path, FormatError(outcome.Err))
		case outcome.Process != nil:
			cmd.Printf("%s -> %s (%s, %d%%)\n", outcome.Path, outcome.Document.ID,
				outcome.Process.Progress.Status, outcome.Process.Progress.ProgressPercent)
		default:
			cmd.Printf("%s -> %s\n", outcome.Path, outcome.Document.ID)
		}
	}
	return <-done
}

func newWatcher(dir string, uploadOnly bool) *filesystem.Watcher {
	pipeline := services.Pipeline
	if uploadOnly {
		pipeline = nil
	}
	return filesystem.New(filesystem.Config{
		Dir:     dir,
		OwnerID: currentUser(),
		Settle:  watchSettle,
	}, services.Ingestion, pipeline)
}
