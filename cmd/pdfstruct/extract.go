package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dgallion1/pdfnarrate/internal/doctree"
)

const defaultPreview = 21

func newExtractCmd(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the headers and sentences of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			ing, err := opts.ingestor(nil)
			if err != nil {
				return err
			}
			units, err := ing.Structure(cmd.Context(), filepath.Base(args[0]), data)
			if err != nil {
				return err
			}
			if asJSON {
				return writeUnitsJSON(cmd.OutOrStdout(), units, limit)
			}
			printUnits(cmd.OutOrStdout(), units, limit)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultPreview, "number of units to print, 0 for all (indices are zero-based, as used by library bookmark)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print units as JSON")
	return cmd
}

func truncate(units doctree.Document, limit int) doctree.Document {
	if limit > 0 && len(units) > limit {
		return units[:limit]
	}
	return units
}

// printUnits writes one "%2d: %s" line per unit, headers highlighted. The
// index is the zero-based unit index that bookmarks refer to.
func printUnits(w io.Writer, units doctree.Document, limit int) {
	header := color.New(color.FgCyan, color.Bold)
	for i, u := range truncate(units, limit) {
		text := u.Text
		if u.Kind == doctree.KindHeader {
			text = header.Sprint(text)
		}
		fmt.Fprintf(w, "%2d: %s\n", i, text)
	}
	if limit > 0 && len(units) > limit {
		fmt.Fprintf(w, "... %d more\n", len(units)-limit)
	}
}

func writeUnitsJSON(w io.Writer, units doctree.Document, limit int) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(truncate(units, limit))
}
