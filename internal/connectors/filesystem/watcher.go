package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
	"github.com/custodia-labs/verity/internal/logger"
)

// DefaultSettle is how long a file must stay quiet before it is uploaded.
const DefaultSettle = 500 * time.Millisecond

// ErrWatcherClosed is returned when Watch is called after Close.
var ErrWatcherClosed = errors.New("watcher is closed")

var watchLog = logger.For("watch")

// Change is a file that appeared or was rewritten in the watched directory.
type Change struct {
	Path string
	At   time.Time
}

// Outcome reports what happened to a settled file.
type Outcome struct {
	Path     string
	Document *domain.Document
	Process  *driving.PipelineResult
	Err      error
}

// Config configures a Watcher.
type Config struct {
	// Dir is the drop directory. Subdirectories are not watched.
	Dir string

	// OwnerID owns every uploaded document.
	OwnerID string

	// Settle overrides DefaultSettle.
	Settle time.Duration
}

// Watcher uploads files dropped into a directory. When a pipeline is set the
// upload is also ingested and embedded. A rewritten file is uploaded again as
// a new document.
type Watcher struct {
	dir       string
	owner     string
	settle    time.Duration
	ingestion driving.IngestionService
	pipeline  driving.Pipeline

	mu      sync.Mutex
	closed  bool
	watcher *fsnotify.Watcher
}

// New creates a Watcher. pipeline may be nil.
func New(cfg Config, ingestion driving.IngestionService, pipeline driving.Pipeline) *Watcher {
	settle := cfg.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Watcher{
		dir:       cfg.Dir,
		owner:     cfg.OwnerID,
		settle:    settle,
		ingestion: ingestion,
		pipeline:  pipeline,
	}
}

// Validate checks that the drop directory exists.
func (w *Watcher) Validate() error {
	if w.owner == "" {
		return fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root path error: %s is not a directory", w.dir)
	}
	return nil
}

// Watch streams changes in the drop directory until ctx is cancelled.
// The channel is closed when watching stops.
func (w *Watcher) Watch(ctx context.Context) (<-chan Change, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrWatcherClosed
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.watcher = fw

	changes := make(chan Change)
	go func() {
		defer close(changes)
		defer fw.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				change := handleFsEvent(event)
				if change == nil {
					continue
				}
				select {
				case changes <- *change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				watchLog.Error("watch %s: %v", w.dir, err)
			}
		}
	}()

	return changes, nil
}

// Run watches the directory and uploads each file once it has settled.
// Outcomes are sent to report when it is non-nil. Run blocks until ctx is
// cancelled.
func (w *Watcher) Run(ctx context.Context, report chan<- Outcome) error {
	changes, err := w.Watch(ctx)
	if err != nil {
		return err
	}
	watchLog.Info("Watching %s for new documents", w.dir)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			pending[change.Path] = change.At
		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, path)
				outcome := w.handleFile(ctx, path)
				if report == nil {
					if outcome.Err != nil {
						watchLog.Error("%s: %v", filepath.Base(path), outcome.Err)
					}
					continue
				}
				select {
				case report <- outcome:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// handleFile uploads one settled file and optionally runs the pipeline.
func (w *Watcher) handleFile(ctx context.Context, path string) Outcome {
	outcome := Outcome{Path: path}

	f, err := os.Open(path)
	if err != nil {
		// Removed before it settled.
		outcome.Err = fmt.Errorf("open %s: %w", path, err)
		return outcome
	}
	defer f.Close()

	doc, err := w.ingestion.Upload(ctx, driving.UploadRequest{
		OwnerID: w.owner,
		Name:    filepath.Base(path),
		Content: f,
	})
	if err != nil {
		watchLog.Debug("upload %s: %v", path, err)
		outcome.Err = err
		return outcome
	}
	outcome.Document = doc
	watchLog.Info("Uploaded %s as %s", filepath.Base(path), doc.ID)

	if w.pipeline == nil {
		return outcome
	}
	result, err := w.pipeline.Process(ctx, doc.OwnerID, doc.ID, 0)
	if err != nil {
		watchLog.Debug("process %s: %v", doc.ID, err)
		outcome.Err = err
		return outcome
	}
	outcome.Process = result
	watchLog.Info("Processed %s: %s (%d%%)", doc.ID, result.Progress.Status, result.Progress.ProgressPercent)
	return outcome
}

// Close stops any active watch. Watch fails after Close.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

// handleFsEvent converts an fsnotify event into a change worth uploading.
// Removals, renames away, chmods, directories and hidden files are ignored.
func handleFsEvent(event fsnotify.Event) *Change {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return nil
	}
	if isHidden(event.Name) {
		return nil
	}
	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return nil
	}
	return &Change{Path: event.Name, At: time.Now()}
}

// isHidden reports whether any element of path starts with a dot.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}
