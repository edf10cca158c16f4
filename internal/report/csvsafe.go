package report

import "strings"

// formulaLeaders are the first characters spreadsheets may treat as the
// start of a formula or a DDE payload.
const formulaLeaders = "=+-@|%\t\r\n"

// EscapeCell prefixes a text cell with a single quote when a spreadsheet
// would otherwise evaluate it.
func EscapeCell(value string) string {
	if value != "" && strings.IndexByte(formulaLeaders, value[0]) >= 0 {
		return "'" + value
	}
	return value
}

// EscapeRow escapes every cell of row into a new slice.
func EscapeRow(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = EscapeCell(cell)
	}
	return out
}
