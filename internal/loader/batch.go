package loader

import (
	"context"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"necroverse/internal/source"
	"necroverse/internal/trace"
)

// Status is the progress state of one file in a batch.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusDecoding Status = "decoding"
	StatusDone     Status = "done"
	StatusError    Status = "error"

	// Emitted by callers that run modules after decoding.
	StatusProbing Status = "probing"
	StatusCached  Status = "cached"
)

// Event reports progress for one file, or for the batch when Path is empty.
type Event struct {
	Path    string
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. It may be called from several
// goroutines.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(ev Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- ev
}

// Result is the outcome for one path of a batch; Err is a *LoadError.
// Skipped results carry File but no Module.
type Result struct {
	Path    string
	File    *source.File
	Module  *Module
	Skipped bool
	Err     error
}

// BatchOptions extend Options for LoadAll.
type BatchOptions struct {
	Options
	Jobs     int // <= 0 uses GOMAXPROCS
	Progress ProgressSink

	// Skip, when set, is asked once per readable file; true leaves the
	// file undecoded and reports it as cached.
	Skip func(*source.File) bool
}

// ListContainers returns the container files under dir, sorted.
func ListContainers(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsContainerPath(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// LoadAll reads every path into fset and decodes them in parallel.
// Results keep the order of paths. Load failures are per-file; the
// returned error is only the context's.
func LoadAll(ctx context.Context, fset *source.FileSet, paths []string, opts BatchOptions) ([]Result, error) {
	emit := func(ev Event) {
		if opts.Progress != nil {
			opts.Progress.OnEvent(ev)
		}
	}
	tr := opts.Tracer
	if tr == nil {
		tr = trace.FromContext(ctx)
		opts.Tracer = tr
	}
	span := trace.Begin(tr, trace.ScopeDriver, "load-all", trace.CurrentSpan(ctx).SpanID)

	results := make([]Result, len(paths))
	// FileSet is not safe for concurrent use; read sequentially.
	for i, path := range paths {
		results[i].Path = path
		id, err := fset.Load(path)
		if err != nil {
			results[i].Err = &LoadError{Path: path, Err: err}
			emit(Event{Path: path, Status: StatusError, Err: results[i].Err})
			continue
		}
		results[i].File = fset.Get(id)
		if opts.Skip != nil && opts.Skip(results[i].File) {
			results[i].Skipped = true
			emit(Event{Path: path, Status: StatusCached})
			continue
		}
		emit(Event{Path: path, Status: StatusQueued})
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(paths))))
	for i := range paths {
		if results[i].Err != nil || results[i].Skipped {
			continue
		}
		file := results[i].File
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			emit(Event{Path: paths[i], Status: StatusDecoding})
			mod, err := Decode(file, opts.Options)
			results[i].Module, results[i].Err = mod, err
			status := StatusDone
			if err != nil {
				status = StatusError
			}
			emit(Event{Path: paths[i], Status: status, Err: err, Elapsed: time.Since(start)})
			return nil
		})
	}
	err := g.Wait()
	span.End("")
	return results, err
}
