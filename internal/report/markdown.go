// Package report renders a markdown digest of a discovery run.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"landscout/internal/discovery"
	"landscout/internal/models"
	"landscout/pkg/metadata"
	"landscout/pkg/utils"
)

const maxTitleRunes = 60

// Render returns the markdown report for one run: the run summary followed by
// an aligned table of the emitted listings, best price per acre first.
func Render(s *discovery.Summary, listings []*models.Listing) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Land listings: %s\n\n", s.Location)
	fmt.Fprintf(&sb, "Run `%s` started %s, took %s.\n\n",
		s.RunID, s.StartedAt.UTC().Format(time.RFC3339), s.Duration().Round(time.Millisecond))

	if s.Disabled {
		sb.WriteString("> Search was disabled: no provider credentials configured.\n\n")
	}

	if s.TimedOut {
		sb.WriteString("> The run stopped at its deadline.\n\n")
	}

	sb.WriteString("## Summary\n\n")

	summary := [][]string{
		{"Metric", "Value"},
		{"Queries run", fmt.Sprintf("%d / %d", s.QueriesRun, s.Queries)},
		{"Results fetched", fmt.Sprint(s.ItemsFetched)},
		{"Duplicates", fmt.Sprint(s.Duplicates)},
		{"Scored", fmt.Sprint(s.Scored)},
		{"Below threshold", fmt.Sprint(s.BelowThreshold)},
		{"Explored", fmt.Sprint(s.Explored)},
		{"Verified", fmt.Sprintf("%d / %d", s.Verified, s.Gated)},
		{"Filtered", fmt.Sprint(s.Filtered())},
		{"Emitted", fmt.Sprint(s.Emitted)},
		{"Budget left", fmt.Sprint(s.BudgetRemaining)},
		{"Budget exhausted", yesNo(s.BudgetExhausted)},
	}

	for _, reason := range sortedKeys(s.VerifyDrops) {
		summary = append(summary, []string{"Dropped: " + string(reason), fmt.Sprint(s.VerifyDrops[reason])})
	}

	for _, reason := range sortedKeys(s.FilterDrops) {
		summary = append(summary, []string{"Filtered: " + reason, fmt.Sprint(s.FilterDrops[reason])})
	}

	writeLines(&sb, alignTable(summary))

	sb.WriteString("\n## Listings\n\n")

	if len(listings) == 0 {
		sb.WriteString("No listings matched.\n")

		return sb.String()
	}

	rows := [][]string{{"#", "Title", "Acres", "Price", "$/acre", "URL"}}

	for i, l := range sortListings(listings) {
		rows = append(rows, []string{
			fmt.Sprint(i + 1),
			cell(utils.TruncateString(l.Title, maxTitleRunes)),
			formatNumber(l.Acres, 2),
			formatMoney(l.Price),
			formatMoney(l.PricePerAcre),
			cell(l.URL),
		})
	}

	writeLines(&sb, alignTable(rows))

	return sb.String()
}

// Write renders the report to path, creating parent directories. The file
// ends with a stamp whose hash covers the report body.
func Write(path string, s *discovery.Summary, listings []*models.Listing) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	content := metadata.Sign(Render(s, listings), metadata.Stamp{
		RunID:     s.RunID,
		Listings:  len(listings),
		Generated: s.FinishedAt,
	})

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// FormatTables re-aligns every markdown table in content so that columns
// line up by display width. Other lines are left as they are.
func FormatTables(content string) string {
	lines := strings.Split(content, "\n")

	var (
		out   []string
		table []string
	)

	flush := func() {
		if len(table) > 0 {
			out = append(out, formatTable(table)...)
			table = nil
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|") {
			table = append(table, line)

			continue
		}

		flush()

		out = append(out, line)
	}

	flush()

	return strings.Join(out, "\n")
}

// formatTable parses raw table lines and aligns them. A table needs a header
// and a separator row; anything shorter is returned unchanged.
func formatTable(rows []string) []string {
	if len(rows) < 2 {
		return rows
	}

	var table [][]string

	for _, row := range rows {
		parts := strings.Split(strings.TrimSpace(row), "|")
		parts = parts[1 : len(parts)-1]

		cells := make([]string, 0, len(parts))
		for _, p := range parts {
			cells = append(cells, strings.TrimSpace(p))
		}

		table = append(table, cells)
	}

	if !isSeparator(table[1]) {
		return rows
	}

	return alignTable(append(table[:1], table[2:]...))
}

func isSeparator(cells []string) bool {
	for _, cell := range cells {
		if strings.Trim(cell, "-: ") != "" {
			return false
		}
	}

	return len(cells) > 0
}

// alignTable renders a header row plus body rows as a markdown table padded
// to the widest cell of each column.
func alignTable(table [][]string) []string {
	if len(table) == 0 {
		return nil
	}

	colCount := 0
	for _, row := range table {
		colCount = max(colCount, len(row))
	}

	// Separator needs at least "---".
	widths := make([]int, colCount)
	for i := range widths {
		widths[i] = 3
	}

	for _, row := range table {
		for i, c := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(c))
		}
	}

	result := make([]string, 0, len(table)+1)

	for i, row := range table {
		result = append(result, renderRow(row, widths))

		if i == 0 {
			sep := make([]string, colCount)
			for j := range sep {
				sep[j] = strings.Repeat("-", widths[j])
			}

			result = append(result, renderRow(sep, widths))
		}
	}

	return result
}

func renderRow(row []string, widths []int) string {
	var sb strings.Builder

	sb.WriteString("|")

	for j, w := range widths {
		content := ""
		if j < len(row) {
			content = row[j]
		}

		sb.WriteString(" ")
		sb.WriteString(runewidth.FillRight(content, w))
		sb.WriteString(" |")
	}

	return sb.String()
}

func writeLines(sb *strings.Builder, lines []string) {
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
}

// sortListings orders by price per acre ascending; unknown values go last,
// ties keep emission order.
func sortListings(listings []*models.Listing) []*models.Listing {
	out := append([]*models.Listing(nil), listings...)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].PricePerAcre, out[j].PricePerAcre
		if a == nil || b == nil {
			return a != nil && b == nil
		}

		return *a < *b
	})

	return out
}

func sortedKeys[K ~string](m map[K]int) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return keys
}

// cell keeps a value from breaking the table.
func cell(s string) string {
	return strings.ReplaceAll(utils.NormalizeWhitespace(s), "|", "/")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}

func formatNumber(v *float64, decimals int) string {
	if v == nil {
		return "-"
	}

	return fmt.Sprintf("%.*f", decimals, *v)
}

// formatMoney renders whole dollars with thousands separators.
func formatMoney(v *float64) string {
	if v == nil {
		return "-"
	}

	digits := fmt.Sprintf("%.0f", *v)

	neg := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")

	var sb strings.Builder

	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteByte(',')
		}

		sb.WriteRune(r)
	}

	if neg {
		return "-$" + sb.String()
	}

	return "$" + sb.String()
}
