package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/DanyaHDanny/tafordqe/cmd/suite"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4672")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAA00")).Bold(true)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

func statusLabel(s suite.Status) string {
	switch s {
	case suite.StatusPassed:
		return passStyle.Render("PASS")
	case suite.StatusFailed:
		return failStyle.Render("FAIL")
	}
	return errorStyle.Render("ERROR")
}

// writeReport renders the report in the requested format.
func writeReport(w io.Writer, r *suite.Report, format string) error {
	if format == ReportFormatJSON {
		return writeJSONReport(w, r)
	}
	return writeTextReport(w, r)
}

type jsonReport struct {
	*suite.Report
	Summary suite.Summary `json:"summary"`
}

func writeJSONReport(w io.Writer, r *suite.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonReport{Report: r, Summary: r.Summary()}); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

func writeTextReport(w io.Writer, r *suite.Report) error {
	rows := make([][]string, 0)
	var failures []string
	for _, sc := range r.Scenarios {
		for _, c := range sc.Checks {
			rows = append(rows, []string{sc.Name, c.Name, statusLabel(c.Status), string(c.Condition), c.Duration.Round(time.Microsecond).String()})
			if c.Status != suite.StatusPassed {
				failures = append(failures, fmt.Sprintf("%s / %s:\n%s", sc.Name, c.Name, indent(c.Message, "  ")))
			}
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SCENARIO", "CHECK", "STATUS", "CONDITION", "DURATION").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	var sb strings.Builder
	title := r.Suite
	if title == "" {
		title = "suite"
	}
	fmt.Fprintf(&sb, "%s  %s\n", titleStyle.Render(title), detailStyle.Render("run "+r.RunID))
	sb.WriteString(t.Render())
	sb.WriteString("\n")
	for _, f := range failures {
		sb.WriteString("\n" + f + "\n")
	}

	s := r.Summary()
	fmt.Fprintf(&sb, "\n%d scenarios, %d checks: %s passed, %s failed, %s errors (%s)\n",
		s.Scenarios, s.Checks,
		passStyle.Render(fmt.Sprint(s.Passed)),
		failStyle.Render(fmt.Sprint(s.Failed)),
		errorStyle.Render(fmt.Sprint(s.Errors)),
		r.Duration.Round(time.Millisecond))

	_, err := io.WriteString(w, sb.String())
	return err
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
