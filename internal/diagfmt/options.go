package diagfmt

import (
	"strings"

	"necroverse/internal/source"
)

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto keeps short paths and shortens long absolute ones to
	// their base name.
	PathModeAuto PathMode = iota
	// PathModeAbsolute always uses the path as loaded.
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color     bool
	PathMode  PathMode
	BaseDir   string // for PathModeRelative
	Context   int    // bytes of hex preview around the span, 0 for none
	ShowNotes bool
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	PathMode     PathMode
	BaseDir      string
	Max          int // trims the output, not the Bag
	IncludeNotes bool
}

const autoPathLimit = 40

func formatPath(fs *source.FileSet, id source.FileID, mode PathMode, base string) string {
	if fs == nil {
		return "<memory>"
	}
	f := fs.Get(id)
	if f == nil {
		return "<memory>"
	}
	switch mode {
	case PathModeBasename:
		return source.BaseName(f.Path)
	case PathModeRelative:
		if base != "" {
			if rel, err := source.RelativePath(f.Path, base); err == nil && !strings.HasPrefix(rel, "../") {
				return rel
			}
		}
		return f.Path
	case PathModeAuto:
		if len(f.Path) > autoPathLimit && strings.HasPrefix(f.Path, "/") {
			return source.BaseName(f.Path)
		}
	}
	return f.Path
}
