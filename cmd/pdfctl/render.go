package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cvix/internal/generation"
	"cvix/internal/generr"
	"cvix/internal/resume"
)

type renderOptions struct {
	template string
	locale   string
	in       string
	out      string
}

func newRenderCmd(e *env, verbose *bool) *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:     "render",
		Aliases: []string{"r"},
		Short:   "Render a résumé JSON document to PDF",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gen, _, err := e.build(*verbose)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runRender(ctx, e, gen, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.template, "template", "t", "classic", "template id")
	cmd.Flags().StringVarP(&opts.locale, "locale", "l", generation.DefaultLocale, "label locale")
	cmd.Flags().StringVarP(&opts.in, "in", "i", "", `résumé JSON file, "-" for stdin`)
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", `output PDF file, "-" for stdout`)
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runRender(ctx context.Context, e *env, gen generator, opts *renderOptions) error {
	raw, err := readInput(e.stdin, opts.in)
	if err != nil {
		return err
	}
	// reject before decoding, as the API does
	if err := resume.CheckPayloadSize(len(raw)); err != nil {
		return err
	}

	var r resume.Resume
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&r); err != nil {
		return generr.Validation("input is not a résumé JSON document",
			generr.FieldError{Field: "body", Rule: "json"})
	}

	doc, err := gen.Generate(ctx, generation.Request{
		TemplateID:    strings.TrimSpace(opts.template),
		Locale:        strings.TrimSpace(opts.locale),
		Resume:        &r,
		CallerID:      "cli",
		CorrelationID: uuid.NewString(),
		PayloadBytes:  len(raw),
	})
	if err != nil {
		return err
	}

	if err := writeOutput(e.stdout, opts.out, doc.PDF); err != nil {
		return err
	}
	if opts.out != "-" {
		fmt.Fprintf(e.stderr, "wrote %s (%d pages, %d bytes, %s/%s, %dms)\n",
			opts.out, doc.Pages, len(doc.PDF), doc.TemplateID, doc.Locale, doc.Duration.Milliseconds())
	}
	return nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	var src io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		src = f
	}
	raw, err := io.ReadAll(io.LimitReader(src, resume.MaxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return raw, nil
}

func writeOutput(stdout io.Writer, path string, pdf []byte) error {
	if path == "-" {
		_, err := stdout.Write(pdf)
		return err
	}
	// write next to the target, then rename, so a failed run leaves no partial file
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pdfctl-*.pdf")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(pdf); err != nil {
		tmp.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
