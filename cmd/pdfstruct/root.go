package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dgallion1/pdfnarrate/internal/config"
	"github.com/dgallion1/pdfnarrate/internal/library"
	"github.com/dgallion1/pdfnarrate/internal/parser"
	"github.com/dgallion1/pdfnarrate/internal/pipeline"
	"github.com/dgallion1/pdfnarrate/internal/textstruct"
	"github.com/dgallion1/pdfnarrate/internal/tokenize"
)

type rootOptions struct {
	cfg       config.Config
	dbPath    string
	tokenizer string
	noColor   bool
	verbose   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "pdfstruct",
		Short:         "Split documents into headers and sentences",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts.cfg = cfg
			if opts.dbPath == "" {
				opts.dbPath = cfg.DBPath
			}
			if opts.tokenizer == "" {
				opts.tokenizer = cfg.Tokenizer
			}
			if opts.noColor {
				color.NoColor = true
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "library database path (default from DB_PATH)")
	cmd.PersistentFlags().StringVarP(&opts.tokenizer, "tokenizer", "t", "", "sentence tokenizer: punkt or rules")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log progress to stderr")

	cmd.AddCommand(newExtractCmd(opts))
	cmd.AddCommand(newLibraryCmd(opts))
	return cmd
}

func (o *rootOptions) logger() *slog.Logger {
	if !o.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func (o *rootOptions) extractor() (*textstruct.Extractor, error) {
	tok, err := tokenize.New(o.tokenizer)
	if err != nil {
		return nil, err
	}
	ex := textstruct.New(tok)
	ex.MaxHeaderLen = o.cfg.MaxHeaderLen
	return ex, nil
}

// ingestor builds an Ingestor; store may be nil for extract-only use.
func (o *rootOptions) ingestor(store library.Store) (*pipeline.Ingestor, error) {
	ex, err := o.extractor()
	if err != nil {
		return nil, err
	}
	return pipeline.NewIngestor(store, ex, pipeline.IngestOptions{
		Parse:    parser.Options{FallbackPdftotext: o.cfg.PDFFallbackPdftotext},
		DedupKey: o.cfg.DedupKey,
	}, o.logger())
}

func (o *rootOptions) openLibrary(ctx context.Context) (*library.SQLiteStore, error) {
	return library.OpenSQLite(ctx, o.dbPath, o.logger())
}
