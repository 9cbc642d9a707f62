package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/docedit/internal/document"
)

type stubRasterizer struct {
	mu     sync.Mutex
	worker string
	sets   int
}

func (r *stubRasterizer) Open(context.Context, []byte) (document.Handle, error) {
	return nil, errors.New("not implemented")
}

func (r *stubRasterizer) WorkerPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.worker
}

func (r *stubRasterizer) SetWorkerPath(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.worker = p
	r.sets++
}

type stubMutator struct{}

func (stubMutator) Load(context.Context, []byte) (document.OutputDocument, error) {
	return nil, errors.New("not implemented")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type counters struct {
	raster, mutator, resolve atomic.Int32
}

func countingSources(c *counters, rast *stubRasterizer, gate <-chan struct{}) Sources {
	return Sources{
		Rasterizer: func(ctx context.Context) (document.Rasterizer, error) {
			c.raster.Add(1)
			if gate != nil {
				<-gate
			}
			return rast, nil
		},
		Mutator: func(ctx context.Context) (document.Mutator, error) {
			c.mutator.Add(1)
			return stubMutator{}, nil
		},
		ResolveWorker: func(name string) (string, error) {
			c.resolve.Add(1)
			return "/usr/bin/" + name, nil
		},
	}
}

func TestLoader_ConcurrentCallsShareOneLoad(t *testing.T) {
	var c counters
	rast := &stubRasterizer{}
	gate := make(chan struct{})
	l := NewLoader(countingSources(&c, rast, gate), "", discardLogger())

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Ensure(context.Background())
			errs <- err
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if n := c.raster.Load(); n != 1 {
		t.Errorf("expected 1 rasterizer fetch, got %d", n)
	}
	if n := c.mutator.Load(); n != 1 {
		t.Errorf("expected 1 mutator fetch, got %d", n)
	}
	if !l.Loaded() {
		t.Error("expected loader to report loaded")
	}
}

func TestLoader_RepeatedCallsReuseResult(t *testing.T) {
	var c counters
	rast := &stubRasterizer{}
	l := NewLoader(countingSources(&c, rast, nil), "", discardLogger())

	first, err := l.Ensure(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := l.Ensure(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Rasterizer != second.Rasterizer {
		t.Error("expected the same rasterizer instance")
	}
	if c.raster.Load() != 1 || c.mutator.Load() != 1 {
		t.Errorf("expected single fetch per library, got raster=%d mutator=%d", c.raster.Load(), c.mutator.Load())
	}
}

func TestLoader_ConfiguresWorkerOnce(t *testing.T) {
	var c counters
	rast := &stubRasterizer{}
	l := NewLoader(countingSources(&c, rast, nil), "pdftoppm", discardLogger())

	for range 3 {
		if _, err := l.Ensure(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if rast.worker != "/usr/bin/pdftoppm" {
		t.Errorf("expected worker path to be set, got %q", rast.worker)
	}
	if rast.sets != 1 {
		t.Errorf("expected worker configured once, got %d", rast.sets)
	}
}

func TestLoader_SkipsWorkerWhenAlreadySet(t *testing.T) {
	var c counters
	rast := &stubRasterizer{worker: "/opt/poppler/pdftoppm"}
	l := NewLoader(countingSources(&c, rast, nil), "", discardLogger())

	if _, err := l.Ensure(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.resolve.Load() != 0 {
		t.Errorf("expected no worker lookup, got %d", c.resolve.Load())
	}
	if rast.worker != "/opt/poppler/pdftoppm" {
		t.Errorf("expected preset worker to be kept, got %q", rast.worker)
	}
}

func TestLoader_FailureIsRetried(t *testing.T) {
	var attempts atomic.Int32
	src := Sources{
		Rasterizer: func(ctx context.Context) (document.Rasterizer, error) {
			if attempts.Add(1) == 1 {
				return nil, errors.New("network down")
			}
			return &stubRasterizer{worker: "x"}, nil
		},
		Mutator: func(ctx context.Context) (document.Mutator, error) {
			return stubMutator{}, nil
		},
	}
	l := NewLoader(src, "", discardLogger())

	if _, err := l.Ensure(context.Background()); err == nil {
		t.Fatal("expected first load to fail")
	}
	if l.Loaded() {
		t.Error("expected loader not to report loaded after failure")
	}
	if _, err := l.Ensure(context.Background()); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts.Load())
	}
}

func TestLoader_WorkerLookupFailurePropagates(t *testing.T) {
	src := Sources{
		Rasterizer: func(ctx context.Context) (document.Rasterizer, error) {
			return &stubRasterizer{}, nil
		},
		Mutator: func(ctx context.Context) (document.Mutator, error) {
			return stubMutator{}, nil
		},
		ResolveWorker: func(string) (string, error) {
			return "", errors.New("not found")
		},
	}
	l := NewLoader(src, "", discardLogger())
	if _, err := l.Ensure(context.Background()); err == nil {
		t.Fatal("expected error when worker cannot be located")
	}
}

func TestLoader_CallerCancellation(t *testing.T) {
	var c counters
	gate := make(chan struct{})
	l := NewLoader(countingSources(&c, &stubRasterizer{}, gate), "", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Ensure(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(gate)
	if _, err := l.Ensure(context.Background()); err != nil {
		t.Fatalf("expected in-flight load to finish for other callers, got %v", err)
	}
	if c.raster.Load() != 1 {
		t.Errorf("expected 1 fetch, got %d", c.raster.Load())
	}
}
