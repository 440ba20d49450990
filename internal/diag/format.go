package diag

import (
	"fmt"
	"sort"
	"strings"

	"necroverse/internal/source"
)

// FormatShortDiagnostics renders one line per diagnostic:
//
//	<severity> <ID> <path>@<offset> <message>
//
// Entries are sorted by path, offset, severity and code. Multi-line messages
// are folded onto one line.
func FormatShortDiagnostics(diags []Diagnostic, fs *source.FileSet, includeNotes bool) string {
	if len(diags) == 0 {
		return ""
	}
	type row struct {
		path string
		off  uint32
		sev  string
		code string
		msg  string
	}
	rows := make([]row, 0, len(diags))
	add := func(sev string, code Code, sp source.Span, msg string) {
		path := "<memory>"
		if fs != nil {
			if f := fs.Get(sp.File); f != nil {
				path = f.Path
			}
		}
		rows = append(rows, row{
			path: path,
			off:  sp.Start,
			sev:  sev,
			code: code.ID(),
			msg:  strings.Join(strings.Fields(msg), " "),
		})
	}
	for _, d := range diags {
		add(strings.ToLower(d.Severity.String()), d.Code, d.Primary, d.Message)
		if includeNotes {
			for _, n := range d.Notes {
				add("note", d.Code, n.Span, n.Msg)
			}
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].path != rows[j].path {
			return rows[i].path < rows[j].path
		}
		if rows[i].off != rows[j].off {
			return rows[i].off < rows[j].off
		}
		return rows[i].code < rows[j].code
	})
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = fmt.Sprintf("%s %s %s@%#x %s", r.sev, r.code, r.path, r.off, r.msg)
	}
	return strings.Join(lines, "\n")
}
