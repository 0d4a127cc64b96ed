package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"cvix/internal/config"
	"cvix/internal/generation"
	"cvix/internal/generr"
	"cvix/internal/logging"
	"cvix/internal/templates"
)

// generator is the part of the pipeline the CLI drives.
type generator interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Document, error)
}

type lister interface {
	Templates() []templates.Metadata
}

// env carries the process streams and the pipeline constructor so tests can
// replace the compiler.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	build  func(verbose bool) (generator, lister, error)
}

func defaultEnv(stdin io.Reader, stdout, stderr io.Writer) *env {
	e := &env{stdin: stdin, stdout: stdout, stderr: stderr}
	e.build = func(verbose bool) (generator, lister, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		logCfg := cfg.Log
		logCfg.Format = "text"
		if !verbose {
			logCfg.Level = "warn"
		}
		p, reg, err := generation.Build(cfg, logging.New(logCfg, e.stderr))
		if err != nil {
			return nil, nil, err
		}
		return p, reg, nil
	}
	return e
}

func newRootCmd(e *env) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "pdfctl",
		Short: "Render résumés to PDF from the command line",
		Long: `pdfctl runs the résumé generation pipeline locally: validation, the
injection guard, template rendering and the sandboxed LaTeX compiler.
Compiler settings are read from the same environment variables as the API.

Examples:
  pdfctl templates
  pdfctl render --template classic --locale es --in resume.json --out resume.pdf
  cat resume.json | pdfctl render --in - --out - > resume.pdf`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(e.stdin)
	root.SetOut(e.stdout)
	root.SetErr(e.stderr)
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline activity to stderr")

	root.AddCommand(newRenderCmd(e, &verbose), newTemplatesCmd(e, &verbose))
	return root
}

// Exit statuses by error kind.
const (
	exitOK = iota
	exitFailure
	exitValidation
	exitSecurity
	exitTemplate
	exitCompilation
	exitTimeout
)

func exitCode(err error) int {
	switch generr.KindOf(err) {
	case generr.KindValidation:
		return exitValidation
	case generr.KindSecurity:
		return exitSecurity
	case generr.KindTemplate:
		return exitTemplate
	case generr.KindCompilation:
		return exitCompilation
	case generr.KindTimeout:
		return exitTimeout
	case generr.KindCanceled, generr.KindUnknown:
		return exitFailure
	}
	return exitFailure
}

func execute(args []string, e *env) int {
	root := newRootCmd(e)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitOK
	}
	report(e.stderr, err)
	return exitCode(err)
}

// report prints the kind and the caller-facing detail of err.
func report(w io.Writer, err error) {
	gerr, ok := generr.As(err)
	if !ok {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	fmt.Fprintf(w, "error (%s): %s\n", gerr.Kind, gerr.Message)
	for _, f := range gerr.Fields {
		if f.Param != "" {
			fmt.Fprintf(w, "  %s: %s=%s\n", f.Field, f.Rule, f.Param)
			continue
		}
		fmt.Fprintf(w, "  %s: %s\n", f.Field, f.Rule)
	}
	if gerr.Pattern != "" {
		fmt.Fprintf(w, "  forbidden token: %s\n", gerr.Pattern)
	}
	if gerr.Detail != "" {
		fmt.Fprintf(w, "compiler log:\n%s\n", gerr.Detail)
	}
	if gerr.Err != nil {
		fmt.Fprintf(w, "  cause: %v\n", gerr.Err)
	}
}
