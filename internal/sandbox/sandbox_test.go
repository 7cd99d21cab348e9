package sandbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

type call struct {
	dir  string
	name string
	args []string
}

type fakeExec struct {
	mu     sync.Mutex
	calls  []call
	stdout string
	stderr string
	err    error
}

func (f *fakeExec) Run(_ context.Context, dir string, name string, args ...string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{dir: dir, name: name, args: args})
	return f.stdout, f.stderr, f.err
}

func TestInterpreterPath(t *testing.T) {
	if got := InterpreterPath("env", "linux"); got != filepath.Join("env", "bin", "python") {
		t.Fatalf("posix layout: %s", got)
	}
	if got := InterpreterPath("env", "windows"); got != filepath.Join("env", "Scripts", "python.exe") {
		t.Fatalf("windows layout: %s", got)
	}
}

func TestProvisionCreatesVenv(t *testing.T) {
	fx := &fakeExec{}
	dir := t.TempDir()
	r := New(Config{WorkDir: dir}, fx, nil)
	if err := r.Provision(context.Background()); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if len(fx.calls) != 1 {
		t.Fatalf("expected one venv call, got %d", len(fx.calls))
	}
	c := fx.calls[0]
	if c.name != DefaultBasePython || strings.Join(c.args, " ") != "-m venv "+filepath.Join(dir, "env") {
		t.Fatalf("unexpected venv call: %+v", c)
	}
}

func TestProvisionFailureIsFatal(t *testing.T) {
	fx := &fakeExec{err: errors.New("no python"), stderr: "command not found"}
	r := New(Config{WorkDir: t.TempDir()}, fx, nil)
	if err := r.Provision(context.Background()); !errors.Is(err, ErrProvision) {
		t.Fatalf("expected ErrProvision, got %v", err)
	}
}

func TestInstallSkipsMissingFile(t *testing.T) {
	fx := &fakeExec{}
	dir := t.TempDir()
	r := New(Config{WorkDir: dir}, fx, nil)
	r.Install(context.Background(), filepath.Join(dir, "requirements.txt"))
	if len(fx.calls) != 0 {
		t.Fatalf("install must not run without a requirements file")
	}
}

func TestInstallFailureIsSwallowed(t *testing.T) {
	fx := &fakeExec{err: errors.New("pip exploded")}
	dir := t.TempDir()
	req := filepath.Join(dir, "requirements.txt")
	if err := os.WriteFile(req, []byte("requests\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := New(Config{WorkDir: dir}, fx, nil)
	r.Install(context.Background(), req)
	if len(fx.calls) != 1 {
		t.Fatalf("expected one pip call, got %d", len(fx.calls))
	}
	if got := strings.Join(fx.calls[0].args, " "); got != "-m pip install -r "+req {
		t.Fatalf("unexpected pip args %q", got)
	}
}

func TestExecuteLaunchFailure(t *testing.T) {
	r := New(Config{WorkDir: t.TempDir()}, RealExecRunner{}, nil)
	res := r.Execute(context.Background(), "main.py")
	if res.Succeeded() {
		t.Fatalf("missing interpreter must fail")
	}
	if res.RunInfo() != res.Stderr {
		t.Fatalf("launch failure run info should be the error text, got %q", res.RunInfo())
	}
}

// shellSandbox makes env/bin/python a wrapper around /bin/sh so the tests can
// run real processes without Python.
func shellSandbox(t *testing.T, timeout time.Duration) *Runner {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "env", "bin")
	if err := os.MkdirAll(bin, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	wrapper := "#!/bin/sh\nexec /bin/sh \"$@\"\n"
	if err := os.WriteFile(filepath.Join(bin, "python"), []byte(wrapper), 0o755); err != nil {
		t.Fatalf("write wrapper: %v", err)
	}
	return New(Config{WorkDir: dir, ExecTimeout: timeout}, RealExecRunner{}, nil)
}

func writeScript(t *testing.T, r *Runner, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(r.cfg.WorkDir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
}

func TestExecuteNonZeroExitWithoutStderrSucceeds(t *testing.T) {
	r := shellSandbox(t, time.Minute)
	writeScript(t, r, "quiet.sh", "echo done\nexit 3\n")
	res := r.Execute(context.Background(), "quiet.sh")
	if !res.Succeeded() {
		t.Fatalf("exit status must not decide success: %+v", res)
	}
	if res.Stdout != "done\n" {
		t.Fatalf("unexpected stdout %q", res.Stdout)
	}
}

func TestExecuteStderrFails(t *testing.T) {
	r := shellSandbox(t, time.Minute)
	writeScript(t, r, "warn.sh", "echo out\necho 'warning: careful' >&2\n")
	res := r.Execute(context.Background(), "warn.sh")
	if res.Succeeded() {
		t.Fatalf("stderr output must fail the run")
	}
	want := "Result:\nout\n\nErrors:\nwarning: careful\n"
	if res.RunInfo() != want {
		t.Fatalf("run info %q want %q", res.RunInfo(), want)
	}
}

func TestExecuteTimeout(t *testing.T) {
	r := shellSandbox(t, 100*time.Millisecond)
	writeScript(t, r, "slow.sh", "exec sleep 5\n")
	res := r.Execute(context.Background(), "slow.sh")
	if res.Succeeded() || !strings.Contains(res.Stderr, "timed out") {
		t.Fatalf("expected timeout failure, got %+v", res)
	}
}

func TestProvisionReusesExistingInterpreter(t *testing.T) {
	r := shellSandbox(t, time.Minute)
	fx := &fakeExec{}
	r.exec = fx
	if err := r.Provision(context.Background()); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if len(fx.calls) != 0 {
		t.Fatalf("existing environment should be reused")
	}
}

func TestStdlibModules(t *testing.T) {
	fx := &fakeExec{stdout: "os\nsys\n\njson\n"}
	r := New(Config{WorkDir: t.TempDir()}, fx, nil)
	mods, err := r.StdlibModules(context.Background())
	if err != nil {
		t.Fatalf("StdlibModules: %v", err)
	}
	if strings.Join(mods, ",") != "os,sys,json" {
		t.Fatalf("unexpected modules %v", mods)
	}
}
