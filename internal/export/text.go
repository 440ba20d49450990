package export

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// WriteText renders d for a terminal.
func WriteText(w io.Writer, d *Document) {
	fmt.Fprintf(w, "%s: %s\n", d.Path, d.Title())
	fmt.Fprintf(w, "  sha256 %s, %d bytes\n", d.SHA256, d.Size)
	if m := d.Movie; m != nil {
		fmt.Fprintf(w, "  stage %gx%g px at %g fps, %d records", m.Width, m.Height, m.FrameRate, m.Records)
		if m.Background != "" {
			fmt.Fprintf(w, ", background %s", m.Background)
		}
		fmt.Fprintln(w)
		if m.MaxRecursion > 0 {
			fmt.Fprintf(w, "  script recursion limit %d\n", m.MaxRecursion)
		}
		for _, f := range m.Frames {
			fmt.Fprintf(w, "  frame %d: %d actions, %d placed, %d removed", f.Index, f.Actions, f.Placements, f.Removals)
			if len(f.Labels) > 0 {
				fmt.Fprintf(w, " [%s]", strings.Join(f.Labels, ", "))
			}
			fmt.Fprintln(w)
		}
		for _, c := range m.Characters {
			fmt.Fprintf(w, "  character %d %s", c.ID, c.Kind)
			if c.Name != "" {
				fmt.Fprintf(w, " %q", c.Name)
			}
			if c.Width > 0 || c.Height > 0 {
				fmt.Fprintf(w, " %gx%g", c.Width, c.Height)
			}
			fmt.Fprintln(w)
		}
	}
	if c := d.Class; c != nil {
		fmt.Fprintf(w, "  %s class %s", c.Access, c.Name)
		if c.Super != "" {
			fmt.Fprintf(w, " extends %s", c.Super)
		}
		fmt.Fprintf(w, ", %d pool entries\n", c.PoolSize)
		for _, f := range c.Fields {
			fmt.Fprintf(w, "  field %s %s %s\n", f.Access, f.Name, f.Descriptor)
		}
	}
	if len(d.Units) > 0 {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  UNIT\tKIND\tBYTES")
		for _, u := range d.Units {
			fmt.Fprintf(tw, "  %s\t%s\t%d\n", u.Name, u.Kind, u.Size)
		}
		tw.Flush()
	}
	for _, p := range d.Probe {
		fmt.Fprintf(w, "  probe %s: %s", p.Unit, p.State)
		switch {
		case p.Error != "":
			fmt.Fprintf(w, " (%s)", p.Error)
		case p.Thrown != "":
			fmt.Fprintf(w, " (throws %s)", p.Thrown)
		case p.Value != "":
			fmt.Fprintf(w, " = %s", p.Value)
		}
		fmt.Fprintln(w)
	}
	for _, dg := range d.Diagnostics {
		fmt.Fprintf(w, "  %s %s @%#x %s\n", strings.ToLower(dg.Severity), dg.Code, dg.Location.StartByte, dg.Message)
	}
}
