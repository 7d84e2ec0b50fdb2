// Package watch compresses files as they appear in a directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/TheEntropyCollective/huffpool/pkg/common/logging"
	"github.com/TheEntropyCollective/huffpool/pkg/core/compressor"
	"github.com/TheEntropyCollective/huffpool/pkg/storage/jobs"
	"github.com/fsnotify/fsnotify"
)

// Config controls a Watcher.
type Config struct {
	Dir       string
	OutputDir string // defaults to Dir
	Suffix    string // appended to output names, defaults to ".huff"
	Format    compressor.Format
	Debounce  time.Duration

	// ExcludePatterns are filepath.Match patterns tested against base names.
	ExcludePatterns []string
}

// Watcher compresses every file created or written in Config.Dir once it
// has been quiet for the debounce interval. Files carrying the output
// suffix and hidden files are ignored.
type Watcher struct {
	config     Config
	compressor *compressor.Compressor
	store      jobs.Store
	logger     *logging.Logger
	watcher    *fsnotify.Watcher

	debounceTimer map[string]*time.Timer
	debounceMu    sync.Mutex
	inflight      sync.WaitGroup
}

// New creates a watcher and starts watching config.Dir. Events are
// collected from this point on; Run processes them.
func New(config Config, comp *compressor.Compressor, store jobs.Store, logger *logging.Logger) (*Watcher, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("watch directory is required")
	}
	if info, err := os.Stat(config.Dir); err != nil {
		return nil, fmt.Errorf("watch directory does not exist: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("watch path %s is not a directory", config.Dir)
	}
	if config.OutputDir == "" {
		config.OutputDir = config.Dir
	}
	if config.Suffix == "" {
		config.Suffix = ".huff"
	}
	if config.Format == "" {
		config.Format = compressor.FormatRaw
	}
	if config.Debounce <= 0 {
		config.Debounce = 200 * time.Millisecond
	}
	if logger == nil {
		logger = logging.GetGlobalLogger().WithComponent("watch")
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsWatcher.Add(config.Dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to add path to watcher: %w", err)
	}

	return &Watcher{
		config:        config,
		compressor:    comp,
		store:         store,
		logger:        logger,
		watcher:       fsWatcher,
		debounceTimer: make(map[string]*time.Timer),
	}, nil
}

// Run processes events until ctx is cancelled. Pending debounced files are
// dropped; jobs already running are waited for.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	w.logger.Info("Watching directory", map[string]interface{}{
		"dir":        w.config.Dir,
		"output_dir": w.config.OutputDir,
		"format":     string(w.config.Format),
	})

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			w.inflight.Wait()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				w.stopTimers()
				w.inflight.Wait()
				return nil
			}
			w.handleFsEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				continue
			}
			w.logger.Warn("Watcher error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

// OutputPath returns where the compressed form of path is written.
func (w *Watcher) OutputPath(path string) string {
	return filepath.Join(w.config.OutputDir, filepath.Base(path)+w.config.Suffix)
}

func (w *Watcher) handleFsEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if w.shouldIgnorePath(event.Name) {
		return
	}

	// Debounce rapid events on the same file
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debounceTimer[event.Name]; exists {
		if timer.Stop() {
			w.inflight.Done()
		}
	}

	path := event.Name
	w.inflight.Add(1)
	w.debounceTimer[path] = time.AfterFunc(w.config.Debounce, func() {
		defer w.inflight.Done()

		w.debounceMu.Lock()
		delete(w.debounceTimer, path)
		w.debounceMu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.compressFile(ctx, path)
	})
}

func (w *Watcher) stopTimers() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	for path, timer := range w.debounceTimer {
		if timer.Stop() {
			w.inflight.Done()
		}
		delete(w.debounceTimer, path)
	}
}

func (w *Watcher) compressFile(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	record := jobs.NewRecord(path)
	output := w.OutputPath(path)

	result, err := w.compressor.CompressFile(ctx, path, output, w.config.Format)
	if err != nil {
		w.logger.Error("Failed to compress file", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return
	}

	record.InputBytes = int64(result.InputLength)
	record.OutputBytes = result.OutputSize(w.config.Format)
	record.BitLength = result.Stream.Bits
	record.Symbols = result.Codes.Symbols()
	record.Workers = result.Workers
	record.Format = string(w.config.Format)
	record.InputDigest = fmt.Sprintf("%x", result.Digest[:])
	for stage, d := range result.Stages {
		record.Stages[string(stage)] = d
	}

	if err := w.store.Save(ctx, record); err != nil {
		w.logger.Warn("Failed to save job record", map[string]interface{}{
			"job_id": record.ID,
			"error":  err.Error(),
		})
	}

	w.logger.Info("Compressed file", map[string]interface{}{
		"path":   path,
		"output": output,
		"job_id": record.ID,
		"ratio":  record.Ratio(),
	})
}

// shouldIgnorePath checks if a path should be ignored based on patterns
func (w *Watcher) shouldIgnorePath(path string) bool {
	filename := filepath.Base(path)

	if strings.HasPrefix(filename, ".") || strings.HasSuffix(filename, w.config.Suffix) {
		return true
	}

	for _, pattern := range w.config.ExcludePatterns {
		if matched, _ := filepath.Match(pattern, filename); matched {
			return true
		}
	}

	return false
}
