// Package export summarises a decoded module as a Document and encodes it
// for tools: plain text for people, JSON, MessagePack and canonical CBOR
// for machines. The decode cache stores the same Document.
package export

import (
	"encoding/hex"
	"fmt"
	"strings"

	"necroverse/internal/classfile"
	"necroverse/internal/diagfmt"
	"necroverse/internal/loader"
	"necroverse/internal/session"
	"necroverse/internal/source"
	"necroverse/internal/swf"
)

// Schema is bumped whenever Document changes shape.
const Schema = 1

// Document is the exported view of one container.
type Document struct {
	Schema      int                      `json:"schema"`
	Path        string                   `json:"path"`
	Format      string                   `json:"format"`
	SHA256      string                   `json:"sha256"`
	Size        int                      `json:"size"`
	Movie       *Movie                   `json:"movie,omitempty"`
	Class       *Class                   `json:"class,omitempty"`
	Units       []Unit                   `json:"units"`
	Diagnostics []diagfmt.DiagnosticJSON `json:"diagnostics"`
	Probe       []Probe                  `json:"probe,omitempty"`
}

// Movie summarises an animation container.
type Movie struct {
	Signature     string      `json:"signature"`
	Version       uint8       `json:"version"`
	Width         float64     `json:"width"`
	Height        float64     `json:"height"`
	FrameRate     float64     `json:"frame_rate"`
	FrameCount    int         `json:"frame_count"`
	Records       int         `json:"records"`
	Background    string      `json:"background,omitempty"`
	ActionScript3 bool        `json:"actionscript3,omitempty"`
	MaxRecursion  int         `json:"max_recursion,omitempty"`
	Frames        []Frame     `json:"frames"`
	Characters    []Character `json:"characters,omitempty"`
	Exports       []Export    `json:"exports,omitempty"`
}

// Frame is one main-timeline frame.
type Frame struct {
	Index      int      `json:"index"`
	Labels     []string `json:"labels,omitempty"`
	Actions    int      `json:"actions"`
	Placements int      `json:"placements"`
	Removals   int      `json:"removals"`
}

// Character is a placeable entity.
type Character struct {
	ID     uint16  `json:"id"`
	Kind   string  `json:"kind"`
	Name   string  `json:"name,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

type Export struct {
	ID   uint16 `json:"id"`
	Name string `json:"name"`
}

// Class summarises a class container.
type Class struct {
	Name       string   `json:"name"`
	Super      string   `json:"super,omitempty"`
	Version    string   `json:"version"`
	Access     string   `json:"access"`
	Interfaces []string `json:"interfaces,omitempty"`
	SourceFile string   `json:"source_file,omitempty"`
	PoolSize   int      `json:"pool_size"`
	Fields     []Member `json:"fields,omitempty"`
	Methods    []Member `json:"methods"`
}

// Member is a field or method.
type Member struct {
	Name       string   `json:"name"`
	Descriptor string   `json:"descriptor"`
	Access     string   `json:"access,omitempty"`
	CodeSize   int      `json:"code_size,omitempty"`
	MaxStack   int      `json:"max_stack,omitempty"`
	MaxLocals  int      `json:"max_locals,omitempty"`
	Handlers   int      `json:"handlers,omitempty"`
	Exceptions []string `json:"exceptions,omitempty"`
}

// Unit is an invocable unit as a session lists it.
type Unit struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Size      int    `json:"size"`
	Signature string `json:"signature,omitempty"`
	Static    bool   `json:"static,omitempty"`
}

// Probe is the outcome of running one unit during a scan.
type Probe struct {
	Unit   string `json:"unit"`
	State  string `json:"state"`
	Value  string `json:"value,omitempty"`
	Thrown string `json:"thrown,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Build summarises the session's module. Diagnostics are taken from the
// module's bag as it stands, so build after probing to include runtime
// diagnostics.
func Build(s *session.Session, fs *source.FileSet, opts diagfmt.JSONOpts) *Document {
	mod := s.Module()
	doc := &Document{
		Schema: Schema,
		Path:   mod.Name(),
		Format: mod.Format.String(),
		SHA256: hex.EncodeToString(mod.File.Hash[:]),
		Size:   len(mod.File.Content),
	}
	switch mod.Format {
	case loader.FormatSWF:
		doc.Movie = movieInfo(mod.Movie)
	case loader.FormatClass:
		doc.Class = classInfo(mod.Class)
	}
	for _, u := range s.Units() {
		doc.Units = append(doc.Units, Unit{
			Name:      u.Name,
			Kind:      string(u.Kind),
			Size:      u.Size,
			Signature: u.Signature,
			Static:    u.Static,
		})
	}
	mod.Diags.Sort()
	doc.Diagnostics = diagfmt.Convert(mod.Diags.Items(), fs, opts)
	return doc
}

// AddProbe records probe results.
func (d *Document) AddProbe(results []session.Result) {
	for _, r := range results {
		p := Probe{Unit: r.Unit, State: r.State, Value: r.Value, Thrown: r.Thrown}
		if r.Err != nil {
			p.Error = r.Err.Error()
		}
		d.Probe = append(d.Probe, p)
	}
}

// Faults counts probe results that did not return normally.
func (d *Document) Faults() int {
	n := 0
	for _, p := range d.Probe {
		if p.State != "returned" {
			n++
		}
	}
	return n
}

func movieInfo(m *swf.Movie) *Movie {
	out := &Movie{
		Signature:  m.Header.Signature,
		Version:    m.Header.Version,
		Width:      m.Header.FrameSize.Width(),
		Height:     m.Header.FrameSize.Height(),
		FrameRate:  m.Header.FrameRate,
		FrameCount: int(m.Header.FrameCount),
		Records:    len(m.Records),
	}
	if m.Background != nil {
		out.Background = m.Background.String()
	}
	if m.Attributes != nil {
		out.ActionScript3 = m.Attributes.ActionScript3()
	}
	if m.Limits != nil {
		out.MaxRecursion = int(m.Limits.MaxRecursionDepth)
	}
	for _, f := range m.Frames {
		out.Frames = append(out.Frames, Frame{
			Index:      f.Index,
			Labels:     f.Labels,
			Actions:    len(f.Actions),
			Placements: len(f.Placements),
			Removals:   len(f.Removals),
		})
	}
	for _, c := range m.Characters {
		ci := Character{ID: c.ID, Kind: c.Kind.String(), Name: c.Name}
		if c.Bounds != nil {
			ci.Width, ci.Height = c.Bounds.Width(), c.Bounds.Height()
		}
		out.Characters = append(out.Characters, ci)
	}
	for _, e := range m.Exports {
		out.Exports = append(out.Exports, Export{ID: e.ID, Name: e.Name})
	}
	return out
}

func classInfo(c *classfile.Class) *Class {
	out := &Class{
		Name:       c.Name,
		Super:      c.SuperName,
		Version:    fmt.Sprintf("%d.%d", c.Major, c.Minor),
		Access:     c.Access.Render(classfile.ForClass),
		Interfaces: c.Interfaces,
		SourceFile: c.SourceFile,
		PoolSize:   c.Pool.Len(),
	}
	for _, f := range c.Fields {
		out.Fields = append(out.Fields, Member{Name: f.Name, Descriptor: f.Descriptor, Access: f.Access.Render(classfile.ForField)})
	}
	for _, m := range c.Methods {
		mi := Member{
			Name:       m.Name,
			Descriptor: m.Descriptor,
			Access:     m.Access.Render(classfile.ForMethod),
			Exceptions: m.Exceptions,
		}
		if m.Code != nil {
			mi.CodeSize = len(m.Code.Bytecode)
			mi.MaxStack = int(m.Code.MaxStack)
			mi.MaxLocals = int(m.Code.MaxLocals)
			mi.Handlers = len(m.Code.Handlers)
		}
		out.Methods = append(out.Methods, mi)
	}
	return out
}

// Title is a one-line description used by listings.
func (d *Document) Title() string {
	switch {
	case d.Movie != nil:
		return fmt.Sprintf("%s v%d, %d frames, %d units", d.Movie.Signature, d.Movie.Version, len(d.Movie.Frames), len(d.Units))
	case d.Class != nil:
		return fmt.Sprintf("class %s (%s), %d methods", strings.ReplaceAll(d.Class.Name, "/", "."), d.Class.Version, len(d.Class.Methods))
	}
	return d.Format
}
