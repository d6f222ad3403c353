package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fmuoria/candidate-screener/internal/export"
	"github.com/fmuoria/candidate-screener/internal/models"
	"github.com/fmuoria/candidate-screener/internal/query"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored candidates as CSV or Excel",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")
		search, _ := cmd.Flags().GetString("search")
		band, _ := cmd.Flags().GetString("band")
		sort, _ := cmd.Flags().GetString("sort")

		q, err := buildQuery(search, band, sort)
		if err != nil {
			return err
		}
		return runExport(cmd.Context(), strings.ToLower(format), out, q)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("format", "f", "csv", "export format: csv or xlsx")
	exportCmd.Flags().StringP("out", "o", "", "output path ('-' or empty writes csv to stdout)")
	exportCmd.Flags().String("search", "", "case-insensitive name or skill filter")
	exportCmd.Flags().String("band", "all", "score band: all, high, medium or low")
	exportCmd.Flags().String("sort", "score", "sort order: score, name or date")
}

func buildQuery(search, band, sort string) (query.Query, error) {
	b, err := query.ParseBand(band)
	if err != nil {
		return query.Query{}, err
	}
	s, err := query.ParseSortKey(sort)
	if err != nil {
		return query.Query{}, err
	}
	return query.Query{SearchTerm: search, Band: b, Sort: s}, nil
}

func runExport(ctx context.Context, format, out string, q query.Query) error {
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	candidates := query.Apply(rt.store.All(), q)

	switch format {
	case "csv":
		if out == "" || out == "-" {
			if err := export.WriteCSV(os.Stdout, candidates); err != nil {
				return err
			}
			break
		}
		if err := writeCSVFile(out, candidates); err != nil {
			return err
		}
	case "xlsx":
		if out == "" || out == "-" {
			return errors.New("--out is required for xlsx exports")
		}
		path, err := export.ExportToExcel(candidates, out)
		if err != nil {
			return err
		}
		out = path
	default:
		return fmt.Errorf("unknown format %q, expected csv or xlsx", format)
	}

	if out != "" && out != "-" {
		fmt.Fprintf(os.Stderr, "Exported %d candidate(s) to %s\n", len(candidates), out)
	}
	return nil
}

func writeCSVFile(path string, candidates []models.Candidate) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	return export.WriteCSV(f, candidates)
}
