// Package sandbox owns the isolated Python environment generated code runs in.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

var ErrProvision = errors.New("sandbox: provisioning failed")

const (
	DefaultExecTimeout    = 5 * time.Minute
	DefaultInstallTimeout = 10 * time.Minute
	DefaultBasePython     = "python3"
)

// ExecutionResult is the captured output of one interpreter run.
type ExecutionResult struct {
	Stdout string
	Stderr string

	launchFailed bool
}

// Succeeded is true iff nothing was written to stderr. The exit status is
// not consulted.
func (r ExecutionResult) Succeeded() bool { return r.Stderr == "" }

// RunInfo renders the result as diagnostic text for the oracle.
func (r ExecutionResult) RunInfo() string {
	if r.launchFailed {
		return r.Stderr
	}
	return "Result:\n" + r.Stdout + "\nErrors:\n" + r.Stderr
}

type Config struct {
	// WorkDir is the workspace root; scripts are resolved against it.
	WorkDir string
	// EnvDir holds the virtual environment. Defaults to WorkDir/env.
	EnvDir         string
	BasePython     string
	ExecTimeout    time.Duration
	InstallTimeout time.Duration
	GOOS           string
}

type Runner struct {
	cfg    Config
	exec   ExecRunner
	logger *log.Logger
}

func New(cfg Config, runner ExecRunner, logger *log.Logger) *Runner {
	if cfg.EnvDir == "" {
		cfg.EnvDir = filepath.Join(cfg.WorkDir, "env")
	}
	if cfg.BasePython == "" {
		cfg.BasePython = DefaultBasePython
	}
	if cfg.ExecTimeout <= 0 {
		cfg.ExecTimeout = DefaultExecTimeout
	}
	if cfg.InstallTimeout <= 0 {
		cfg.InstallTimeout = DefaultInstallTimeout
	}
	if cfg.GOOS == "" {
		cfg.GOOS = runtime.GOOS
	}
	if runner == nil {
		runner = RealExecRunner{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{cfg: cfg, exec: runner, logger: logger}
}

func (r *Runner) EnvDir() string { return r.cfg.EnvDir }

// InterpreterPath resolves the environment interpreter for an OS family.
func InterpreterPath(envDir, goos string) string {
	if goos == "windows" {
		return filepath.Join(envDir, "Scripts", "python.exe")
	}
	return filepath.Join(envDir, "bin", "python")
}

func (r *Runner) Interpreter() string {
	return InterpreterPath(r.cfg.EnvDir, r.cfg.GOOS)
}

// Provision creates the virtual environment with pip. An existing
// interpreter is reused.
func (r *Runner) Provision(ctx context.Context) error {
	if _, err := os.Stat(r.Interpreter()); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.cfg.EnvDir), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrProvision, err)
	}
	_, stderr, err := r.exec.Run(ctx, "", r.cfg.BasePython, "-m", "venv", r.cfg.EnvDir)
	if err != nil {
		return fmt.Errorf("%w: %v: %s", ErrProvision, err, strings.TrimSpace(stderr))
	}
	r.logger.Printf("sandbox: virtual environment created at %s", r.cfg.EnvDir)
	return nil
}

// Install runs pip against a requirements file. A missing file is a no-op
// and failures are only logged.
func (r *Runner) Install(ctx context.Context, requirementsFile string) {
	if _, err := os.Stat(requirementsFile); err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.InstallTimeout)
	defer cancel()

	r.logger.Printf("sandbox: installing requirements from %s", requirementsFile)
	stdout, stderr, err := r.exec.Run(ctx, r.cfg.WorkDir, r.Interpreter(), "-m", "pip", "install", "-r", requirementsFile)
	if err != nil {
		r.logger.Printf("sandbox: install failed: %v\n%s", err, stderr)
		return
	}
	if s := strings.TrimSpace(stdout); s != "" {
		r.logger.Printf("sandbox: pip output:\n%s", s)
	}
}

// Execute runs the interpreter against a workspace-relative or absolute
// path. It never returns an error: launch failures become a failed result
// whose stderr is the failure message.
func (r *Runner) Execute(ctx context.Context, path string) ExecutionResult {
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(r.cfg.WorkDir, path)
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ExecTimeout)
	defer cancel()

	stdout, stderr, err := r.exec.Run(ctx, r.cfg.WorkDir, r.Interpreter(), full)
	if err == nil {
		return ExecutionResult{Stdout: stdout, Stderr: stderr}
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		msg := fmt.Sprintf("execution of %s timed out after %s", path, r.cfg.ExecTimeout)
		if stderr != "" {
			msg = stderr + "\n" + msg
		}
		return ExecutionResult{Stdout: stdout, Stderr: msg}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return ExecutionResult{Stdout: stdout, Stderr: stderr}
	}
	r.logger.Printf("sandbox: error executing %s: %v", filepath.Base(path), err)
	return ExecutionResult{Stderr: err.Error(), launchFailed: true}
}

const stdlibProbe = "import sys; print('\\n'.join(sorted(sys.stdlib_module_names)))"

// StdlibModules asks the environment interpreter for its standard-library
// module names. Interpreters older than 3.10 report an error.
func (r *Runner) StdlibModules(ctx context.Context) ([]string, error) {
	stdout, stderr, err := r.exec.Run(ctx, r.cfg.WorkDir, r.Interpreter(), "-c", stdlibProbe)
	if err != nil {
		return nil, fmt.Errorf("list stdlib: %v: %s", err, strings.TrimSpace(stderr))
	}
	var out []string
	for _, line := range strings.Split(stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("list stdlib: empty module list")
	}
	return out, nil
}

// Version returns the "major.minor" version of the environment interpreter.
func (r *Runner) Version(ctx context.Context) (string, error) {
	stdout, stderr, err := r.exec.Run(ctx, r.cfg.WorkDir, r.Interpreter(), "-c",
		"import sys; print(f'{sys.version_info.major}.{sys.version_info.minor}')")
	if err != nil {
		return "", fmt.Errorf("read version: %v: %s", err, strings.TrimSpace(stderr))
	}
	return strings.TrimSpace(stdout), nil
}
