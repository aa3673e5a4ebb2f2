package report

import (
	"math"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/lcaexport/backend/pkg/common"
)

const byteOrderMark = "\ufeff"

// EncodeResultCSV renders the solver matrix as CSV: a "method_en" header
// followed by the process columns, then one row per indicator. labels
// replace the process ids in the header when there is exactly one per
// process. The output starts with a byte order mark and has no trailing
// newline.
func EncodeResultCSV(result *common.SolverResult, labels []string, table IndicatorTable) string {
	columns := result.ProcessIndex
	if labels != nil && len(labels) == len(result.ProcessIndex) {
		columns = labels
	}

	var buf strings.Builder
	buf.WriteString(byteOrderMark)

	header := make([]string, 0, len(columns)+1)
	header = append(header, "method_en")
	header = append(header, columns...)
	writeRow(&buf, header)

	for i, indicator := range result.IndicatorIndex {
		var values []float64
		if i < len(result.Values) {
			values = result.Values[i]
		}
		row := make([]string, 0, len(columns)+1)
		row = append(row, table.Name(indicator))
		for j := range columns {
			if j < len(values) {
				row = append(row, formatNumber(values[j]))
			} else {
				row = append(row, "")
			}
		}
		buf.WriteByte('\n')
		writeRow(&buf, row)
	}

	return buf.String()
}

func writeRow(buf *strings.Builder, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(escapeCell(cell))
	}
}

// escapeCell quotes a cell only when it contains a comma, a quote or a line
// break. Leading spaces and other characters are written as they are.
func escapeCell(cell string) string {
	if !strings.ContainsAny(cell, ",\"\r\n") {
		return cell
	}
	return `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
}

// formatNumber writes numbers the way the solver's JSON clients print them:
// plain decimals in the usual range and exponent form for very large or very
// small magnitudes.
func formatNumber(v float64) string {
	if isNotFinite(v) {
		return ""
	}
	abs := math.Abs(v)
	if abs == 0 || (abs >= 1e-6 && abs < 1e21) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	s := strconv.FormatFloat(v, 'e', -1, 64)
	// 1e-07 -> 1e-7
	mantissa, exp, _ := strings.Cut(s, "e")
	sign := exp[:1]
	exp = strings.TrimLeft(exp[1:], "0")
	return mantissa + "e" + sign + exp
}

func isNotFinite(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}
