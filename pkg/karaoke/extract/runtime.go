package extract

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

//go:embed pitch_helper.py
var helperScript []byte

const (
	helperName            = "pitch_helper.py"
	defaultPython         = "python3"
	defaultRuntimeTimeout = 10 * time.Minute
)

// ErrRuntimeClosed is returned by calls made after Close.
var ErrRuntimeClosed = errors.New("extraction runtime closed")

type RuntimeConfig struct {
	// Python is the interpreter that runs the helper. Defaults to python3.
	Python string
	// WorkDir is where the private runtime directory is created. Defaults to os.TempDir().
	WorkDir string
	// Concurrency bounds simultaneous model invocations. Defaults to 1.
	Concurrency int64
	// Timeout applies to each invocation when the context carries no deadline.
	Timeout time.Duration
	// CrepeCapacity selects the crepe model size. Defaults to tiny.
	CrepeCapacity string
	// StepMillis is the crepe hop. Defaults to 10.
	StepMillis int
}

// Runtime owns the out-of-process model environment. It is created once by the
// caller, shared by every extraction, and released with Close.
type Runtime struct {
	cfg    RuntimeConfig
	dir    string
	script string
	sem    *semaphore.Weighted

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewRuntime prepares a private working directory holding the helper script.
func NewRuntime(cfg RuntimeConfig) (*Runtime, error) {
	if cfg.Python == "" {
		cfg.Python = defaultPython
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRuntimeTimeout
	}
	if cfg.CrepeCapacity == "" {
		cfg.CrepeCapacity = "tiny"
	}
	if cfg.StepMillis <= 0 {
		cfg.StepMillis = 10
	}

	dir, err := os.MkdirTemp(cfg.WorkDir, "karaoke-runtime-*")
	if err != nil {
		return nil, fmt.Errorf("creating runtime dir: %w", err)
	}
	script := filepath.Join(dir, helperName)
	if err := os.WriteFile(script, helperScript, 0o600); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("writing helper: %w", err)
	}

	return &Runtime{
		cfg:    cfg,
		dir:    dir,
		script: script,
		sem:    semaphore.NewWeighted(cfg.Concurrency),
	}, nil
}

// Dir is the runtime's private working directory.
func (r *Runtime) Dir() string { return r.dir }

// Python is the configured interpreter.
func (r *Runtime) Python() string { return r.cfg.Python }

// Acquire reserves one invocation slot. The returned release must be called exactly
// once; extra calls are ignored.
func (r *Runtime) Acquire(ctx context.Context) (func(), error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRuntimeClosed
	}
	r.inflight.Add(1)
	r.mu.Unlock()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.inflight.Done()
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.sem.Release(1)
			r.inflight.Done()
		})
	}, nil
}

// Run executes the helper for one input file and returns its stdout.
func (r *Runtime) Run(ctx context.Context, method Method, input string) ([]byte, error) {
	release, err := r.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(
		ctx,
		r.cfg.Python,
		r.script,
		"--method", string(method),
		"--input", input,
		"--capacity", r.cfg.CrepeCapacity,
		"--step", fmt.Sprintf("%d", r.cfg.StepMillis),
	)
	cmd.Dir = r.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("%s helper failed: %w", method, err)
		}
		return nil, fmt.Errorf("%s helper failed: %w: %s", method, err, lastLine(msg))
	}
	return stdout.Bytes(), nil
}

// Close waits for in-flight invocations and removes the working directory.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.inflight.Wait()
	return os.RemoveAll(r.dir)
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
