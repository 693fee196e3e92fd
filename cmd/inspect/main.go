// Command inspect runs a single inspection on a local photo and writes the
// report as plain text or PDF.
//
// Usage:
//
//	inspect -mode safety -project "Tower B" site.jpg
//	inspect -mode progress -format pdf -o report.pdf site.png
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/DukeRupert/sitecheck/internal"
	"github.com/DukeRupert/sitecheck/internal/domain"
	"github.com/DukeRupert/sitecheck/internal/report"
	"github.com/DukeRupert/sitecheck/internal/service"
	"github.com/DukeRupert/sitecheck/internal/session"
)

type options struct {
	mode      string
	project   string
	inspector string
	location  string
	format    string
	output    string
	apiKey    string
	photo     string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.mode, "mode", string(domain.InspectionModeSafety), "inspection mode: safety, quality or progress")
	fs.StringVar(&opts.project, "project", "", "project name")
	fs.StringVar(&opts.inspector, "inspector", "", "inspector name")
	fs.StringVar(&opts.location, "location", "", "location on site")
	fs.StringVar(&opts.format, "format", "txt", "output format: txt or pdf")
	fs.StringVar(&opts.output, "o", "", "output file (default stdout for txt, generated name for pdf)")
	fs.StringVar(&opts.apiKey, "api-key", "", "API key (defaults to the configured key)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: inspect [flags] PHOTO")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return opts, errors.New("exactly one photo is required")
	}
	opts.photo = fs.Arg(0)
	opts.format = strings.ToLower(opts.format)

	mode, err := domain.ParseInspectionMode(opts.mode)
	if err != nil {
		return opts, fmt.Errorf("invalid -mode %q: %s", opts.mode, domain.ErrorMessage(err))
	}
	opts.mode = string(mode)
	if opts.format != "txt" && opts.format != "pdf" {
		return opts, fmt.Errorf("invalid -format %q: must be txt or pdf", opts.format)
	}

	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	logger := internal.NewLogger(stderr, cfg.Env, cfg.LogLevel)

	data, err := os.ReadFile(opts.photo)
	if err != nil {
		return fmt.Errorf("read photo: %w", err)
	}

	svc := service.NewInspectionService(service.InspectionConfig{
		Candidates:        internal.ModelCandidates(cfg),
		MaxUploadSize:     cfg.MaxUploadSize,
		MaxImageDimension: cfg.MaxImageDimension,
	}, internal.NewProviderFactory(cfg, logger), service.NewImagingProcessor(), logger)

	log := session.NewLog()
	result, err := svc.Inspect(ctx, log, domain.InspectionRequest{
		Mode: domain.InspectionMode(opts.mode),
		Image: domain.Image{
			Data:        data,
			ContentType: http.DetectContentType(data),
			Filename:    filepath.Base(opts.photo),
		},
		ProjectName:   opts.project,
		InspectorName: opts.inspector,
		Location:      opts.location,
	}, opts.apiKey)
	if err != nil {
		return describe(err)
	}

	var out bytes.Buffer
	switch opts.format {
	case "pdf":
		if _, err := report.NewPresenter().WritePDF(&out, *result); err != nil {
			return fmt.Errorf("generate pdf: %w", err)
		}
		if opts.output == "" {
			opts.output = report.Filename(result.Timestamp, "pdf")
		}
	default:
		out.WriteString(report.Text(*result))
	}

	if opts.output == "" {
		_, err = out.WriteTo(stdout)
		return err
	}
	if err := os.WriteFile(opts.output, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(stderr, "Report written to %s (model %s)\n", opts.output, result.ModelUsed)
	return nil
}

// describe turns a service error into the message shown on the terminal.
func describe(err error) error {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		msgs := make([]string, 0, len(ve.Fields))
		for field, msg := range ve.Fields {
			msgs = append(msgs, field+": "+msg)
		}
		sort.Strings(msgs)
		return fmt.Errorf("invalid input: %s", strings.Join(msgs, "; "))
	}
	return errors.New(domain.ErrorMessage(err))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "inspect:", err)
		os.Exit(1)
	}
}
