package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"necroverse/internal/diag"
	"necroverse/internal/source"
)

type palette struct {
	err, warn, info, code, note, mark *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:  color.New(color.FgRed, color.Bold),
		warn: color.New(color.FgYellow, color.Bold),
		info: color.New(color.FgCyan),
		code: color.New(color.Faint),
		note: color.New(color.FgBlue),
		mark: color.New(color.FgRed),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.info, p.code, p.note, p.mark} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	default:
		return p.info
	}
}

// Pretty writes diagnostics for a person to read, in bag order (call
// bag.Sort first). Each entry is
//
//	<path>@<offset>: <SEV> <CODE>: <message>
//
// followed by a hex preview of the bytes around the span when
// opts.Context is set, then the notes.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	p := newPalette(opts.Color)
	for _, d := range bag.Items() {
		loc := formatPath(fs, d.Primary.File, opts.PathMode, opts.BaseDir)
		fmt.Fprintf(w, "%s@%#x: %s %s: %s\n",
			loc, d.Primary.Start,
			p.severity(d.Severity).Sprint(d.Severity.String()),
			p.code.Sprint(d.Code.ID()),
			d.Message)
		if opts.Context > 0 {
			writeHexPreview(w, fs, d.Primary, opts.Context, p)
		}
		if opts.ShowNotes {
			for _, n := range d.Notes {
				nloc := formatPath(fs, n.Span.File, opts.PathMode, opts.BaseDir)
				fmt.Fprintf(w, "  %s %s@%#x: %s\n", p.note.Sprint("note:"), nloc, n.Span.Start, n.Msg)
			}
		}
	}
	if dropped := bag.Dropped(); dropped > 0 {
		fmt.Fprintf(w, "... %d more diagnostics not shown\n", dropped)
	}
}

// writeHexPreview prints up to context bytes either side of span, with
// the span's own bytes bracketed.
func writeHexPreview(w io.Writer, fs *source.FileSet, span source.Span, context int, p palette) {
	if fs == nil {
		return
	}
	f := fs.Get(span.File)
	if f == nil || int(span.Start) > len(f.Content) {
		return
	}
	start := max(int(span.Start)-context, 0)
	end := min(int(span.End)+context, len(f.Content))
	if end <= start {
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "    %08x ", start)
	for i := start; i < end; i++ {
		inside := i >= int(span.Start) && i < int(span.End)
		b := fmt.Sprintf("%02x", f.Content[i])
		switch {
		case i == int(span.Start) && inside:
			sb.WriteString(" [" + p.mark.Sprint(b))
		case inside:
			sb.WriteString(" " + p.mark.Sprint(b))
		default:
			sb.WriteString(" " + b)
		}
		if inside && i == int(span.End)-1 {
			sb.WriteString("]")
		}
	}
	sb.WriteString("\n")
	fmt.Fprint(w, sb.String())
}
