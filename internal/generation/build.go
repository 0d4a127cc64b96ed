package generation

import (
	"fmt"
	"log/slog"

	"cvix/internal/config"
	"cvix/internal/latex"
	"cvix/internal/render"
	"cvix/internal/sandbox"
	"cvix/internal/templates"
)

// Build wires the registry, guard, renderer and compiler described by cfg.
// The registry is returned as well so callers can list templates.
func Build(cfg *config.Config, logger *slog.Logger) (*Pipeline, *templates.Registry, error) {
	reg, err := templates.LoadDir(cfg.Templates.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("load templates: %w", err)
	}

	mode, err := latex.ParseMode(cfg.Guard.Mode)
	if err != nil {
		return nil, nil, err
	}

	compiler, err := sandbox.FromConfig(cfg.Compiler, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init compiler: %w", err)
	}

	logger.Info("generation pipeline ready",
		slog.Int("templates", len(reg.Templates())),
		slog.String("guard_mode", string(mode)),
		slog.String("compiler_backend", cfg.Compiler.Backend),
		slog.Int("compiler_slots", compiler.Size()),
	)
	return New(reg, render.New(latex.NewGuard(mode)), compiler, logger), reg, nil
}
