package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"necroverse/internal/dcache"
	"necroverse/internal/export"
	"necroverse/internal/loader"
	"necroverse/internal/session"
	"necroverse/internal/source"
	"necroverse/internal/trace"
)

var scanCmd = &cobra.Command{
	Use:   "scan [flags] <dir|container>...",
	Short: "Decode and probe many containers in parallel",
	Long: `Scan directories for .swf and .class files, decode them in parallel and
optionally run every unit once. Results are cached by content hash so
unchanged files are not decoded again.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().Int("jobs", 0, "max parallel workers (0=auto)")
	scanCmd.Flags().Bool("probe", true, "run every unit once")
	scanCmd.Flags().String("format", "text", "output format (text|json|msgpack|cbor)")
	scanUI := uiModeAuto
	scanCmd.Flags().Var(&scanUI, "ui", "progress view")
	scanCmd.Flags().Bool("cache", false, "use the document cache (default from [cache] enabled)")
	scanCmd.Flags().Bool("drop-cache", false, "empty the document cache before scanning")
}

type scanEntry struct {
	Path   string
	Doc    *export.Document
	Cached bool
	Err    error
}

type scanOptions struct {
	jobs  int
	probe bool
	cache *dcache.Cache
}

func runScan(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	jobs, err := flags.GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	probe, err := flags.GetBool("probe")
	if err != nil {
		return fmt.Errorf("failed to get probe flag: %w", err)
	}
	formatStr, err := flags.GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format, err := export.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	mode, ok := flags.Lookup("ui").Value.(*uiMode)
	if !ok {
		return fmt.Errorf("ui flag has unexpected type %T", flags.Lookup("ui").Value)
	}
	useCache, err := flags.GetBool("cache")
	if err != nil {
		return fmt.Errorf("failed to get cache flag: %w", err)
	}
	dropCache, err := flags.GetBool("drop-cache")
	if err != nil {
		return fmt.Errorf("failed to get drop-cache flag: %w", err)
	}

	e := envFrom(cmd)
	opts := scanOptions{jobs: jobs, probe: probe}
	if !flags.Changed("cache") {
		useCache = e.cfg.Cache.Enabled
	}
	if useCache || dropCache {
		c, err := dcache.Open(e.cfg.Cache.Dir, "necro")
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		if dropCache {
			if err := c.DropAll(); err != nil {
				return fmt.Errorf("drop cache: %w", err)
			}
		}
		if useCache {
			opts.cache = c
		}
	}

	var paths []string
	for _, arg := range args {
		if st, err := os.Stat(arg); err == nil && st.IsDir() {
			found, err := loader.ListContainers(arg)
			if err != nil {
				return err
			}
			paths = append(paths, found...)
			continue
		}
		paths = append(paths, arg)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no containers found")
	}

	scan := func(ctx context.Context, sink loader.ProgressSink) ([]scanEntry, error) {
		return scanFiles(ctx, cmd, paths, opts, sink)
	}
	var entries []scanEntry
	idx := e.timer.Begin("scan")
	if mode.useTUI(e.quiet, format.Binary()) {
		entries, err = runScanWithUI(cmd.Context(), fmt.Sprintf("scanning %d files", len(paths)), paths, scan)
	} else {
		entries, err = scan(cmd.Context(), nil)
	}
	e.timer.End(idx, fmt.Sprintf("%d files", len(paths)))
	if err != nil {
		return err
	}

	failed := 0
	docs := make([]*export.Document, 0, len(entries))
	for _, en := range entries {
		if en.Err != nil {
			failed++
			continue
		}
		docs = append(docs, en.Doc)
	}
	out := cmd.OutOrStdout()
	if format == export.FormatText {
		writeScanTable(out, entries)
	} else if err := export.Encode(out, format, docs...); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be loaded", failed, len(entries))
	}
	return nil
}

// scanFiles loads paths in parallel, then probes and summarises every
// decoded module with the same worker bound. Cached documents skip both.
func scanFiles(ctx context.Context, cmd *cobra.Command, paths []string, opts scanOptions, sink loader.ProgressSink) ([]scanEntry, error) {
	e := envFrom(cmd)
	tr := trace.FromContext(ctx)
	emit := func(ev loader.Event) {
		if sink != nil {
			sink.OnEvent(ev)
		}
	}

	cached := make(map[string]*export.Document)
	skip := func(f *source.File) bool {
		doc, ok, err := opts.cache.Get(f.Hash, opts.probe)
		if err != nil {
			trace.Point(tr, trace.ScopeModule, "cache-error", err.Error())
			return false
		}
		if ok {
			cp := *doc
			cp.Path = f.Path
			cached[f.Path] = &cp
		}
		return ok
	}

	fs := source.NewFileSet()
	results, err := loader.LoadAll(ctx, fs, paths, loader.BatchOptions{
		Options:  loader.Options{Config: e.cfg, Tracer: tr},
		Jobs:     opts.jobs,
		Progress: sink,
		Skip:     skip,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]scanEntry, len(results))
	g, gctx := errgroup.WithContext(ctx)
	jobs := opts.jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(jobs)
	for i, res := range results {
		entries[i] = scanEntry{Path: res.Path, Err: res.Err}
		switch {
		case res.Err != nil:
			continue
		case res.Skipped:
			entries[i].Doc, entries[i].Cached = cached[res.File.Path], true
			continue
		}
		g.Go(func() error {
			start := time.Now()
			emit(loader.Event{Path: res.Path, Status: loader.StatusProbing})
			doc, err := probeModule(gctx, res.Module, fs, opts.probe, e)
			entries[i].Doc, entries[i].Err = doc, err
			status := loader.StatusDone
			if err != nil {
				status = loader.StatusError
			} else if err := opts.cache.Put(res.File.Hash, doc, opts.probe); err != nil {
				trace.Point(tr, trace.ScopeModule, "cache-error", err.Error())
			}
			emit(loader.Event{Path: res.Path, Status: status, Err: err, Elapsed: time.Since(start)})
			return nil
		})
	}
	return entries, g.Wait()
}

func probeModule(ctx context.Context, mod *loader.Module, fs *source.FileSet, probe bool, e *env) (*export.Document, error) {
	s, err := session.New(mod, session.Options{Config: e.cfg, Tracer: trace.FromContext(ctx)})
	if err != nil {
		return nil, err
	}
	var results []session.Result
	if probe {
		results = s.Probe(ctx)
	}
	doc := export.Build(s, fs, jsonOpts(false))
	doc.AddProbe(results)
	return doc, nil
}

func writeScanTable(w io.Writer, entries []scanEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tPATH\tSUMMARY\tFAULTS\tDIAGS")
	for _, en := range entries {
		switch {
		case en.Err != nil:
			fmt.Fprintf(tw, "error\t%s\t%v\t-\t-\n", en.Path, en.Err)
		default:
			status := "ok"
			if en.Cached {
				status = "cached"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", status, en.Path, en.Doc.Title(), en.Doc.Faults(), len(en.Doc.Diagnostics))
		}
	}
	tw.Flush()
}
