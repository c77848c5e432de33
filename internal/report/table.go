// Package report renders SPT summaries as text tables and CSV.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/couchcryptid/borehole-data-service/internal/domain"
)

// Format selects the summary output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
)

// ParseFormat maps a user-supplied name to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatTable, "":
		return FormatTable, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown summary format %q", s)
	}
}

// FormatDepth renders a depth in its shortest exact decimal form.
func FormatDepth(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64)
}

// FormatBlowData renders recorded increments as "2 3 5 7", an empty
// sequence as "", and absent data as "None".
func FormatBlowData(b domain.BlowData) string {
	if !b.Valid() {
		return "None"
	}
	counts := b.Counts()
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, " ")
}

// WriteTable writes an aligned table with the summary headers. Absent blow
// data is shown as "None" and present data in brackets.
func WriteTable(w io.Writer, s domain.SPTSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "%s\t%s\t%s\n", domain.ColumnDepth, domain.ColumnBlowData, domain.ColumnBlowCounts)
	for _, row := range s.Rows() {
		blows := "None"
		if row.BlowData.Valid() {
			blows = "[" + FormatBlowData(row.BlowData) + "]"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\n", FormatDepth(row.Depth), blows, row.BlowCount)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write summary table: %w", err)
	}
	return nil
}

// WriteCSV writes the summary with a header row. Absent blow data is an
// empty cell; recorded increments are space-separated.
func WriteCSV(w io.Writer, s domain.SPTSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.SummaryColumns[:]); err != nil {
		return fmt.Errorf("write summary csv: %w", err)
	}
	for _, row := range s.Rows() {
		blows := ""
		if row.BlowData.Valid() {
			blows = FormatBlowData(row.BlowData)
		}
		record := []string{FormatDepth(row.Depth), blows, strconv.Itoa(row.BlowCount)}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write summary csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write summary csv: %w", err)
	}
	return nil
}

// Write encodes the summary in the given format.
func Write(w io.Writer, s domain.SPTSummary, f Format) error {
	if f == FormatCSV {
		return WriteCSV(w, s)
	}
	return WriteTable(w, s)
}

// Printer implements domain.SummaryRenderer by writing to an io.Writer.
type Printer struct {
	w      io.Writer
	format Format
}

// NewPrinter creates a Printer for the given output and format.
func NewPrinter(w io.Writer, format Format) *Printer {
	return &Printer{w: w, format: format}
}

// RenderSummary writes a heading line followed by the encoded summary.
func (p *Printer) RenderSummary(_ context.Context, s domain.SPTSummary) error {
	if p.format == FormatTable {
		if _, err := fmt.Fprintf(p.w, "Borehole %s (%d readings)\n", s.BoreholeID, s.Len()); err != nil {
			return fmt.Errorf("write summary heading: %w", err)
		}
	}
	return Write(p.w, s, p.format)
}
