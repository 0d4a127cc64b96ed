package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/google/uuid"

	"cvix/internal/generr"
)

// DockerOptions configures a DockerCompiler.
type DockerOptions struct {
	Binary    string
	Image     string
	Command   []string
	WorkRoot  string
	Timeout   time.Duration
	Limits    Limits
	CPUs      float64
	PidsLimit int
	// User is passed to --user; empty means the server's own uid:gid so the
	// bind-mounted work dir stays private.
	User   string
	Logger *slog.Logger
}

// DockerCompiler runs the TeX engine in a throwaway container with no
// network, a read-only root filesystem and no capabilities.
type DockerCompiler struct {
	opts   DockerOptions
	logger *slog.Logger
}

func NewDockerCompiler(opts DockerOptions) (*DockerCompiler, error) {
	if opts.Image == "" {
		return nil, errors.New("sandbox: docker image is required")
	}
	if len(opts.Command) == 0 {
		return nil, errors.New("sandbox: docker command is required")
	}
	if opts.Timeout <= 0 {
		return nil, errors.New("sandbox: compile timeout must be positive")
	}
	if opts.Binary == "" {
		opts.Binary = "docker"
	}
	if opts.User == "" {
		opts.User = fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid())
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DockerCompiler{opts: opts, logger: logger}, nil
}

func (d *DockerCompiler) Compile(ctx context.Context, source string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, generr.Canceled(err).WithOp("sandbox.compile")
	}

	ws, err := newWorkspace(d.opts.WorkRoot)
	if err != nil {
		return nil, generr.Compilation("prepare sandbox", "", err).WithOp("sandbox.compile")
	}
	defer ws.remove()

	if err := ws.writeSource(source); err != nil {
		return nil, generr.Compilation("write source", "", err).WithOp("sandbox.compile")
	}

	runCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	name := "cvix-" + uuid.NewString()
	cmd := exec.CommandContext(runCtx, d.opts.Binary, d.runArgs(name, ws.dir)...)
	cmd.Dir = ws.dir
	cmd.WaitDelay = waitDelay
	cmd.Cancel = func() error {
		// the client exiting does not stop the container
		d.kill(name)
		return cmd.Process.Kill()
	}

	console := &boundedBuffer{limit: consoleLimit}
	cmd.Stdout = console
	cmd.Stderr = console

	runErr := cmd.Run()
	if err := classify(ctx, runCtx, runErr, console.Bytes(), ws); err != nil {
		d.logger.Debug("container compile failed", slog.String("container", name), slog.Any("error", runErr))
		return nil, err
	}
	return ws.readOutput(d.opts.Limits.maxOutputBytes())
}

// runArgs builds the docker run command line for one compilation.
func (d *DockerCompiler) runArgs(name, dir string) []string {
	l := d.opts.Limits
	args := []string{
		"run", "--rm",
		"--name", name,
		"--network", "none",
		"--read-only",
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges",
		"--user", d.opts.User,
		"--tmpfs", "/tmp:rw,noexec,nosuid,size=64m",
		"--volume", dir + ":/work:rw",
		"--workdir", "/work",
		"--env", "HOME=/work",
		"--env", "TEXMFOUTPUT=/work",
		"--env", "TEXMFVAR=/work",
		"--env", "shell_escape=f",
		"--env", "openin_any=p",
		"--env", "openout_any=p",
	}
	if l.MemoryMB > 0 {
		mem := strconv.Itoa(l.MemoryMB) + "m"
		args = append(args, "--memory", mem, "--memory-swap", mem)
	}
	if d.opts.CPUs > 0 {
		args = append(args, "--cpus", strconv.FormatFloat(d.opts.CPUs, 'f', -1, 64))
	}
	if d.opts.PidsLimit > 0 {
		args = append(args, "--pids-limit", strconv.Itoa(d.opts.PidsLimit))
	}
	args = append(args, "--ulimit", "fsize="+strconv.FormatInt(l.maxOutputBytes(), 10))
	if l.CPUSeconds > 0 {
		args = append(args, "--ulimit", "cpu="+strconv.Itoa(l.CPUSeconds))
	}
	args = append(args, d.opts.Image)
	return append(args, d.opts.Command...)
}

func (d *DockerCompiler) kill(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if out, err := exec.CommandContext(ctx, d.opts.Binary, "kill", name).CombinedOutput(); err != nil {
		d.logger.Warn("kill container failed",
			slog.String("container", name),
			slog.String("output", string(out)),
			slog.Any("error", err),
		)
	}
}
