package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/dgallion1/docedit/internal/document"
)

// Libraries are the two external backends a session needs.
type Libraries struct {
	Rasterizer document.Rasterizer
	Mutator    document.Mutator
}

// WorkerConfigurable is implemented by rasterizers that delegate painting to
// an external worker process.
type WorkerConfigurable interface {
	WorkerPath() string
	SetWorkerPath(path string)
}

// Sources fetch one library each.
type Sources struct {
	Rasterizer func(ctx context.Context) (document.Rasterizer, error)
	Mutator    func(ctx context.Context) (document.Mutator, error)
	// ResolveWorker locates the rasterizer's worker entry point. Defaults to
	// exec.LookPath.
	ResolveWorker func(name string) (string, error)
}

// Loader loads the libraries at most once. Concurrent callers share a single
// in-flight load; a failed load is forgotten so the next call starts over.
type Loader struct {
	sources Sources
	worker  string
	log     *slog.Logger

	mu   sync.Mutex
	call *loadCall
}

type loadCall struct {
	done chan struct{}
	libs Libraries
	err  error
}

// NewLoader creates a loader. worker names the rasterizer worker binary.
func NewLoader(src Sources, worker string, log *slog.Logger) *Loader {
	if src.ResolveWorker == nil {
		src.ResolveWorker = exec.LookPath
	}
	if worker == "" {
		worker = "pdftoppm"
	}
	return &Loader{sources: src, worker: worker, log: log}
}

// Ensure returns the loaded libraries, loading them if needed.
func (l *Loader) Ensure(ctx context.Context) (Libraries, error) {
	l.mu.Lock()
	c := l.call
	if c == nil {
		c = &loadCall{done: make(chan struct{})}
		l.call = c
		go l.load(context.WithoutCancel(ctx), c)
	}
	l.mu.Unlock()

	select {
	case <-c.done:
		return c.libs, c.err
	case <-ctx.Done():
		return Libraries{}, ctx.Err()
	}
}

// Loaded reports whether a load has completed successfully.
func (l *Loader) Loaded() bool {
	l.mu.Lock()
	c := l.call
	l.mu.Unlock()
	if c == nil {
		return false
	}
	select {
	case <-c.done:
		return c.err == nil
	default:
		return false
	}
}

func (l *Loader) load(ctx context.Context, c *loadCall) {
	defer close(c.done)

	libs, err := l.fetch(ctx)
	if err != nil {
		l.log.Error("library load failed", "error", err)
		c.err = err
		l.mu.Lock()
		if l.call == c {
			l.call = nil
		}
		l.mu.Unlock()
		return
	}
	l.log.Info("libraries loaded")
	c.libs = libs
}

func (l *Loader) fetch(ctx context.Context) (Libraries, error) {
	rast, err := l.sources.Rasterizer(ctx)
	if err != nil {
		return Libraries{}, fmt.Errorf("load rasterizer: %w", err)
	}
	mut, err := l.sources.Mutator(ctx)
	if err != nil {
		return Libraries{}, fmt.Errorf("load mutator: %w", err)
	}

	if wc, ok := rast.(WorkerConfigurable); ok && wc.WorkerPath() == "" {
		path, err := l.sources.ResolveWorker(l.worker)
		if err != nil {
			return Libraries{}, fmt.Errorf("locate rasterizer worker %q: %w", l.worker, err)
		}
		wc.SetWorkerPath(path)
		l.log.Info("rasterizer worker configured", "path", path)
	}

	return Libraries{Rasterizer: rast, Mutator: mut}, nil
}
