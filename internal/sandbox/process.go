package sandbox

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strconv"
	"time"

	"cvix/internal/generr"
)

// ProcessOptions configures a ProcessCompiler.
type ProcessOptions struct {
	Binary   string
	Args     []string
	WorkRoot string
	Timeout  time.Duration
	Limits   Limits
	// IsolateNetwork runs the compiler in fresh user and network namespaces.
	IsolateNetwork bool
	// PrlimitPath wraps the compiler in prlimit(1) when set.
	PrlimitPath string
	Logger      *slog.Logger
}

// ProcessCompiler runs the TeX engine as a restricted child process.
type ProcessCompiler struct {
	opts   ProcessOptions
	logger *slog.Logger
}

// NewProcessCompiler validates opts and returns a ready compiler.
func NewProcessCompiler(opts ProcessOptions) (*ProcessCompiler, error) {
	if opts.Binary == "" {
		return nil, errors.New("sandbox: compiler binary is required")
	}
	if opts.Timeout <= 0 {
		return nil, errors.New("sandbox: compile timeout must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessCompiler{opts: opts, logger: logger}, nil
}

// Compile writes source to a fresh directory, runs the compiler there and
// returns main.pdf.
func (p *ProcessCompiler) Compile(ctx context.Context, source string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, generr.Canceled(err).WithOp("sandbox.compile")
	}

	ws, err := newWorkspace(p.opts.WorkRoot)
	if err != nil {
		return nil, generr.Compilation("prepare sandbox", "", err).WithOp("sandbox.compile")
	}
	defer ws.remove()

	if err := ws.writeSource(source); err != nil {
		return nil, generr.Compilation("write source", "", err).WithOp("sandbox.compile")
	}

	runCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	name, args := p.argv()
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = ws.dir
	cmd.Env = scrubbedEnv(ws.dir)
	cmd.SysProcAttr = sysProcAttr(p.opts.IsolateNetwork)
	cmd.WaitDelay = waitDelay
	cmd.Cancel = func() error {
		killGroup(cmd.Process.Pid)
		return nil
	}

	console := &boundedBuffer{limit: consoleLimit}
	cmd.Stdout = console
	cmd.Stderr = console

	start := time.Now()
	runErr := p.run(cmd)
	p.logger.Debug("compiler finished",
		slog.String("work_dir", ws.dir),
		slog.Duration("elapsed", time.Since(start)),
		slog.Any("error", runErr),
	)

	if err := classify(ctx, runCtx, runErr, console.Bytes(), ws); err != nil {
		return nil, err
	}

	return ws.readOutput(p.opts.Limits.maxOutputBytes())
}

// run starts cmd and, once the engine exits, kills whatever it left in its
// process group before reaping it. The unreaped leader keeps the group id
// from being handed to another process while the kill is sent.
func (p *ProcessCompiler) run(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	pid := cmd.Process.Pid
	if err := awaitExit(pid); err != nil {
		p.logger.Debug("await compiler exit failed", slog.Int("pid", pid), slog.Any("error", err))
	} else {
		killGroup(pid)
	}
	return cmd.Wait()
}

// argv returns the command line, wrapped in prlimit when configured.
func (p *ProcessCompiler) argv() (string, []string) {
	if p.opts.PrlimitPath == "" {
		return p.opts.Binary, p.opts.Args
	}

	l := p.opts.Limits
	args := make([]string, 0, len(p.opts.Args)+6)
	if l.MemoryMB > 0 {
		args = append(args, "--as="+strconv.FormatInt(int64(l.MemoryMB)<<20, 10))
	}
	if l.CPUSeconds > 0 {
		args = append(args, "--cpu="+strconv.Itoa(l.CPUSeconds))
	}
	args = append(args, "--fsize="+strconv.FormatInt(l.maxOutputBytes(), 10))
	if l.MaxProcesses > 0 {
		args = append(args, "--nproc="+strconv.Itoa(l.MaxProcesses))
	}
	args = append(args, "--", p.opts.Binary)
	args = append(args, p.opts.Args...)
	return p.opts.PrlimitPath, args
}

// scrubbedEnv is the complete environment of the compiler: no variables are
// inherited from the server.
func scrubbedEnv(dir string) []string {
	return []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=" + dir,
		"TMPDIR=" + dir,
		"TEXMFOUTPUT=" + dir,
		"TEXMFVAR=" + dir,
		"shell_escape=f",
		"openin_any=p",
		"openout_any=p",
		"LANG=C.UTF-8",
	}
}
