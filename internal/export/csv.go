// Package export renders query results as CSV or Excel.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fmuoria/candidate-screener/internal/models"
)

// CSVHeader is the column order of WriteCSV
var CSVHeader = []string{"Name", "Email", "Phone", "Score", "Skills", "File"}

// WriteCSV writes one row per candidate, skills joined with "; "
func WriteCSV(w io.Writer, candidates []models.Candidate) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, c := range candidates {
		record := []string{c.Name, c.Email, c.Phone, strconv.Itoa(c.Score), joinSkills(c.Skills), c.File}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row for %s: %w", c.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func joinSkills(skills []models.Skill) string {
	names := make([]string, 0, len(skills))
	for _, s := range skills {
		names = append(names, s.Name)
	}
	return strings.Join(names, "; ")
}
