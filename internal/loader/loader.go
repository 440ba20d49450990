// Package loader turns raw container bytes into decoded modules. It sniffs
// the format, runs the matching decoder and collects diagnostics; a
// structural failure becomes a single *LoadError for the whole module.
package loader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"necroverse/internal/classfile"
	"necroverse/internal/config"
	"necroverse/internal/diag"
	"necroverse/internal/source"
	"necroverse/internal/swf"
	"necroverse/internal/trace"
)

// Format identifies a container family.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatSWF
	FormatClass
)

func (f Format) String() string {
	switch f {
	case FormatSWF:
		return "swf"
	case FormatClass:
		return "class"
	default:
		return "unknown"
	}
}

// Sniff picks the container family from the leading bytes.
func Sniff(data []byte) Format {
	if swf.Sniff(data) {
		return FormatSWF
	}
	if len(data) >= 4 && binary.BigEndian.Uint32(data) == classfile.Magic {
		return FormatClass
	}
	return FormatUnknown
}

// IsContainerPath reports whether path carries one of the extensions a
// directory scan picks up.
func IsContainerPath(path string) bool {
	p := strings.ToLower(path)
	return strings.HasSuffix(p, ".swf") || strings.HasSuffix(p, ".class")
}

// LoadError is the one actionable message for a module that could not be
// structurally decoded. Records decoded before the failure are dropped.
type LoadError struct {
	Path   string
	Format Format
	Err    error
}

func (e *LoadError) Error() string {
	if e.Format == FormatUnknown {
		return fmt.Sprintf("%s: cannot load: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s: cannot load %s container: %v", e.Path, e.Format, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ErrUnknownFormat is wrapped by LoadError when no decoder claims the bytes.
var ErrUnknownFormat = errors.New("unrecognised container format")

// Module is one decoded container. Exactly one of Movie and Class is set.
type Module struct {
	File   *source.File
	Format Format
	Movie  *swf.Movie
	Class  *classfile.Class
	Diags  *diag.Bag
}

// Name is the path the module was loaded from.
func (m *Module) Name() string { return m.File.Path }

// Options configure decoding.
type Options struct {
	Config config.Config
	Tracer trace.Tracer
}

func (o Options) maxDiagnostics() int {
	if o.Config.Limits.MaxDiagnostics > 0 {
		return o.Config.Limits.MaxDiagnostics
	}
	return config.Default().Limits.MaxDiagnostics
}

// Decode decodes a file already held by a FileSet.
func Decode(file *source.File, opts Options) (*Module, error) {
	tr := opts.Tracer
	if tr == nil {
		tr = trace.Nop
	}
	span := trace.Begin(tr, trace.ScopeModule, "decode", 0).WithExtra("path", file.Path)
	mod, err := decode(file, opts)
	if err != nil {
		trace.Fault(tr, trace.ScopeModule, "load-error", err.Error(), nil)
		span.WithExtra("status", "error").End(file.Path)
		return nil, err
	}
	span.WithExtra("diagnostics", fmt.Sprint(mod.Diags.Len())).End(file.Path)
	return mod, nil
}

func decode(file *source.File, opts Options) (*Module, error) {
	bag := diag.NewBag(opts.maxDiagnostics())
	rep := diag.NewDedupReporter(diag.BagReporter{Bag: bag})
	mod := &Module{File: file, Format: Sniff(file.Content), Diags: bag}
	var err error
	switch mod.Format {
	case FormatSWF:
		mod.Movie, err = swf.Decode(file.Content, swf.Options{
			File:                file.ID,
			Reporter:            rep,
			MinRecordsBeforeEnd: opts.Config.SWF.MinRecordsBeforeEnd,
			SmallTailBytes:      opts.Config.SWF.SmallTailBytes,
		})
	case FormatClass:
		mod.Class, err = classfile.Decode(file.Content, classfile.Options{File: file.ID, Reporter: rep})
	default:
		err = ErrUnknownFormat
	}
	if err != nil {
		return nil, &LoadError{Path: file.Path, Format: mod.Format, Err: err}
	}
	bag.Sort()
	return mod, nil
}

// Load reads path into fs and decodes it.
func Load(fs *source.FileSet, path string, opts Options) (*Module, error) {
	id, err := fs.Load(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return Decode(fs.Get(id), opts)
}

// LoadBytes decodes in-memory content registered under name.
func LoadBytes(fs *source.FileSet, name string, content []byte, opts Options) (*Module, error) {
	return Decode(fs.Get(fs.AddVirtual(name, content)), opts)
}
