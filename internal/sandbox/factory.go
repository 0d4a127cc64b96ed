package sandbox

import (
	"fmt"
	"log/slog"

	"cvix/internal/config"
	"cvix/internal/metrics"
)

// FromConfig builds the configured backend wrapped in a SlotPool.
func FromConfig(cfg config.CompilerConfig, logger *slog.Logger) (*SlotPool, error) {
	limits := Limits{
		MemoryMB:     cfg.MemoryLimitMB,
		CPUSeconds:   cfg.CPUSeconds,
		MaxOutputMB:  cfg.MaxOutputMB,
		MaxProcesses: cfg.MaxProcesses,
	}

	var (
		inner Compiler
		err   error
	)
	switch cfg.Backend {
	case config.BackendProcess, "":
		inner, err = NewProcessCompiler(ProcessOptions{
			Binary:         cfg.Binary,
			Args:           cfg.Args,
			WorkRoot:       cfg.WorkRoot,
			Timeout:        cfg.Timeout,
			Limits:         limits,
			IsolateNetwork: cfg.IsolateNetwork,
			PrlimitPath:    cfg.PrlimitPath,
			Logger:         logger,
		})
	case config.BackendDocker:
		inner, err = NewDockerCompiler(DockerOptions{
			Binary:    cfg.Docker.Binary,
			Image:     cfg.Docker.Image,
			Command:   append([]string{cfg.Binary}, cfg.Args...),
			WorkRoot:  cfg.WorkRoot,
			Timeout:   cfg.Timeout,
			Limits:    limits,
			CPUs:      cfg.Docker.CPUs,
			PidsLimit: cfg.Docker.PidsLimit,
			User:      cfg.Docker.User,
			Logger:    logger,
		})
	default:
		return nil, fmt.Errorf("sandbox: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	return NewSlotPool(inner, PoolOptions{
		Slots:     cfg.Slots,
		QueueWait: cfg.QueueWait,
		InUse:     metrics.CompilerSlotsInUse,
	}), nil
}
