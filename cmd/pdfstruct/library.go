package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dgallion1/pdfnarrate/internal/library"
)

func newLibraryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Manage the local document library",
	}
	cmd.AddCommand(
		newLibraryAddCmd(opts),
		newLibraryListCmd(opts),
		newLibraryShowCmd(opts),
		newLibraryDeleteCmd(opts),
		newLibraryBookmarkCmd(opts),
	)
	return cmd
}

func newLibraryAddCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <file>...",
		Short: "Structure documents and store them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openLibrary(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			ing, err := opts.ingestor(store)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				res, err := ing.Ingest(cmd.Context(), filepath.Base(path), data)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				state := color.GreenString("added")
				if res.FromLibrary {
					state = color.YellowString("already in library")
				}
				fmt.Fprintf(out, "%s  %s  %d units  %s\n", res.Record.ID, res.Record.Filename, res.Record.UnitCount(), state)
			}
			return nil
		},
	}
}

func newLibraryListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored documents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openLibrary(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			docs, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			printSummaries(cmd.OutOrStdout(), docs)
			return nil
		},
	}
}

func printSummaries(w io.Writer, docs []library.Summary) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "library is empty")
		return
	}
	for _, d := range docs {
		mark := "-"
		if d.Bookmark != nil {
			mark = strconv.Itoa(*d.Bookmark)
		}
		fmt.Fprintf(w, "%s  %-30s  %5d units  bookmark %-4s  %s\n",
			d.ID, d.Filename, d.UnitCount, mark, d.DateAdded.Local().Format(time.DateTime))
	}
}

func newLibraryShowCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openLibrary(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			rec, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printUnits(cmd.OutOrStdout(), rec.Units, limit)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of units to print, 0 for all (indices are zero-based, as used by library bookmark)")
	return cmd
}

func newLibraryDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openLibrary(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newLibraryBookmarkCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bookmark <id> <sentence-index>",
		Short: "Set the reading position of a stored document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("sentence index must be an integer: %w", err)
			}
			store, err := opts.openLibrary(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.SetBookmark(cmd.Context(), args[0], index); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bookmark for %s set to %d\n", args[0], index)
			return nil
		},
	}
}
