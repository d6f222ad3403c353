package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fmuoria/candidate-screener/internal/analytics"
	"github.com/fmuoria/candidate-screener/internal/models"
)

const (
	summarySheet    = "Summary"
	candidatesSheet = "Candidates"
	skillsSheet     = "Skills"
)

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

// ExportToExcel writes the candidates to an .xlsx workbook at outputPath,
// appending the extension when missing.
func ExportToExcel(candidates []models.Candidate, outputPath string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(outputPath), ".xlsx") {
		outputPath = outputPath + ".xlsx"
	}
	outputPath = filepath.Clean(outputPath)

	f, err := buildWorkbook(candidates, time.Now())
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := f.SaveAs(outputPath); err != nil {
		// fall back to a buffered write
		var buf bytes.Buffer
		if writeErr := f.Write(&buf); writeErr != nil {
			return "", fmt.Errorf("failed to save Excel file: direct save failed (%v), buffer write also failed: %w", err, writeErr)
		}
		if fileErr := os.WriteFile(outputPath, buf.Bytes(), 0644); fileErr != nil {
			return "", fmt.Errorf("failed to save Excel file: direct save failed (%v), file write failed: %w", err, fileErr)
		}
	}

	return outputPath, nil
}

// WriteExcel streams the workbook to w
func WriteExcel(w io.Writer, candidates []models.Candidate) error {
	f, err := buildWorkbook(candidates, time.Now())
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

func buildWorkbook(candidates []models.Candidate, now time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{candidatesSheet, skillsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}

	if err := createSummarySheet(f, candidates, now); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := createCandidatesSheet(f, candidates); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create candidates sheet: %w", err)
	}
	if err := createSkillsSheet(f, candidates); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create skills sheet: %w", err)
	}
	return f, nil
}

// createSummarySheet writes totals, the score distribution and score range
func createSummarySheet(f *excelize.File, candidates []models.Candidate, now time.Time) error {
	sheet := summarySheet
	f.SetColWidth(sheet, "A", "A", 28)
	f.SetColWidth(sheet, "B", "B", 40)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	row := 1
	heading := func(title string) {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), title)
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row), headerStyle)
		f.MergeCell(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row))
		row++
	}
	line := func(label string, value any) {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), label)
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), labelStyle)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), value)
		row++
	}

	summary := analytics.Summarize(candidates, now)

	heading("Candidate Screening Report")
	row++
	line("Generated:", now.Format("2006-01-02 15:04:05"))
	line("Total Candidates:", summary.TotalProcessed)
	line("Processed Today:", summary.ProcessedToday)
	row++

	heading("Score Distribution")
	line(fmt.Sprintf("High (%d-100):", models.HighScoreThreshold), summary.Distribution.High)
	line(fmt.Sprintf("Medium (%d-%d):", models.MediumScoreThreshold, models.HighScoreThreshold-1), summary.Distribution.Medium)
	line(fmt.Sprintf("Low (<%d):", models.MediumScoreThreshold), summary.Distribution.Low)
	row++

	if len(candidates) == 0 {
		return nil
	}

	heading("Statistics")
	line("Average Score:", fmt.Sprintf("%.2f", summary.AverageScore))
	line("Highest Score:", summary.HighestScore)
	line("Lowest Score:", summary.LowestScore)
	line("Score Range:", summary.HighestScore-summary.LowestScore)
	line("High Performers:", fmt.Sprintf("%d (%.1f%%)", summary.HighPerformers, summary.HighPerformerShare))
	line("Top Skills:", strings.Join(summary.TopSkills, ", "))

	return nil
}

// createCandidatesSheet writes one color-coded row per candidate
func createCandidatesSheet(f *excelize.File, candidates []models.Candidate) error {
	sheet := candidatesSheet
	widths := map[string]float64{"A": 25, "B": 30, "C": 16, "D": 8, "E": 12, "F": 45, "G": 28, "H": 20, "I": 40}
	for col, w := range widths {
		f.SetColWidth(sheet, col, col, w)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder,
	})
	if err != nil {
		return err
	}

	bandStyles := make(map[models.Status]int, 3)
	for status, color := range map[models.Status]string{
		models.StatusShortlisted: "C6EFCE",
		models.StatusReviewed:    "FFEB9C",
		models.StatusPending:     "FFC7CE",
	} {
		style, err := f.NewStyle(&excelize.Style{
			Fill:   excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Border: thinBorder,
		})
		if err != nil {
			return err
		}
		bandStyles[status] = style
	}

	headers := []string{"Name", "Email", "Phone", "Score", "Status", "Skills", "File", "Processed", "Notes"}
	for col, header := range headers {
		cell := fmt.Sprintf("%s1", string(rune('A'+col)))
		f.SetCellValue(sheet, cell, header)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for i, c := range candidates {
		row := i + 2
		values := []any{
			c.Name,
			c.Email,
			c.Phone,
			c.Score,
			string(models.StatusForScore(c.Score)),
			joinSkills(c.Skills),
			c.File,
			c.ProcessedAt.Format("2006-01-02 15:04"),
			strings.Join(c.Notes, " | "),
		}
		for col, v := range values {
			f.SetCellValue(sheet, fmt.Sprintf("%s%d", string(rune('A'+col)), row), v)
		}
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("I%d", row), bandStyles[models.StatusForScore(c.Score)])
	}

	if len(candidates) > 0 {
		f.AutoFilter(sheet, fmt.Sprintf("A1:I%d", len(candidates)+1), []excelize.AutoFilterOptions{})
	}

	f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
	return nil
}

// createSkillsSheet writes the full skill frequency table
func createSkillsSheet(f *excelize.File, candidates []models.Candidate) error {
	sheet := skillsSheet
	f.SetColWidth(sheet, "A", "A", 25)
	f.SetColWidth(sheet, "B", "D", 16)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: thinBorder,
	})
	if err != nil {
		return err
	}

	headers := []string{"Skill", "Count", "Avg Confidence", "% of Candidates"}
	for col, header := range headers {
		cell := fmt.Sprintf("%s1", string(rune('A'+col)))
		f.SetCellValue(sheet, cell, header)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	stats := analytics.SkillFrequency(candidates, distinctSkills(candidates))
	for i, s := range stats {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), s.Name)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), s.Count)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), fmt.Sprintf("%.2f", s.AvgConfidence))
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), fmt.Sprintf("%.1f", s.Percentage))
	}
	return nil
}

func distinctSkills(candidates []models.Candidate) int {
	seen := make(map[string]struct{})
	for _, c := range candidates {
		for _, s := range c.Skills {
			seen[s.Name] = struct{}{}
		}
	}
	return len(seen)
}
