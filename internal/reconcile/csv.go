package reconcile

// csv.go handles the tabular side of a marks upload: reading the byte
// stream, locating the required columns, and cleaning individual cells of
// the usual spreadsheet-export artifacts.

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Header names the upload must carry. Matching is case-insensitive; any
// additional columns are ignored.
const (
	ColStudentUsername = "StudentUsername"
	ColSubjectCode     = "SubjectCode"
	ColMarks           = "Marks"
)

// HeaderIndex maps lowercased column names to their position in a row.
type HeaderIndex map[string]int

// readRows parses the whole upload. Rows may be ragged; short rows are
// handled per-cell by cellAt.
func readRows(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// makeHeaderIndex builds a case-insensitive lookup for a header row.
func makeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		idx[strings.ToLower(cleanCell(h))] = i
	}
	return idx
}

// requireColumns checks that all required columns exist and returns the
// ones that do not, using their canonical names.
func requireColumns(idx HeaderIndex, required ...string) []string {
	var missing []string
	for _, col := range required {
		if _, ok := idx[strings.ToLower(col)]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// cellAt returns the cleaned cell under the named column, or "" when the
// row is too short to reach it.
func cellAt(row []string, idx HeaderIndex, col string) string {
	pos, ok := idx[strings.ToLower(col)]
	if !ok || pos >= len(row) {
		return ""
	}
	return cleanCell(row[pos])
}

// cleanCell strips whitespace, a UTF-8 BOM, Excel formula prefixes (="...")
// and stray surrounding quotes from a cell value.
func cleanCell(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.Trim(s, `"'`)
}

// parseMarks parses a marks cell as a finite float. NaN and infinities are
// rejected the same as unparsable text.
func parseMarks(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// isEmptyRow reports whether every cell is blank after trimming.
func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
