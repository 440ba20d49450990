package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"

	"necroverse/internal/avm1"
	"necroverse/internal/classfile"
	"necroverse/internal/dcache"
	"necroverse/internal/loader"
	"necroverse/internal/swf"
)

type recordSink struct {
	mu     sync.Mutex
	events []loader.Event
}

func (s *recordSink) OnEvent(ev loader.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordSink) final() map[string]loader.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]loader.Status{}
	for _, ev := range s.events {
		out[ev.Path] = ev.Status
	}
	return out
}

func writeFixtures(t *testing.T) (dir string, paths []string) {
	t.Helper()
	dir = t.TempDir()
	b := swf.NewBuilder(8)
	b.DoAction(avm1.NewAssembler(8).Push("hi").Op(avm1.ActTrace).MustBytes())
	b.ShowFrame()
	b.End()
	cb := classfile.NewBuilder("demo/Hello", "java/lang/Object")
	cb.AddMethod(classfile.AccPublic|classfile.AccStatic, "answer", "()I", 1, 0, []byte{0x10, 42, 0xac})
	files := map[string][]byte{
		"a.swf":   b.Bytes(),
		"b.class": cb.Bytes(),
		"c.swf":   []byte("FWS"),
	}
	for name, data := range files {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	paths, err := loader.ListContainers(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, paths
}

func TestScanFilesUsesCache(t *testing.T) {
	_, paths := writeFixtures(t)
	cache, err := dcache.Open(t.TempDir(), "necro")
	if err != nil {
		t.Fatal(err)
	}
	cmd := &cobra.Command{}
	opts := scanOptions{jobs: 2, probe: true, cache: cache}

	sink := &recordSink{}
	entries, err := scanFiles(context.Background(), cmd, paths, opts, sink)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Err != nil || entries[0].Cached || len(entries[0].Doc.Probe) != 1 {
		t.Errorf("a.swf = %+v", entries[0])
	}
	if entries[1].Doc == nil || entries[1].Doc.Probe[0].Value != "42" {
		t.Errorf("b.class = %+v", entries[1])
	}
	if entries[2].Err == nil {
		t.Errorf("c.swf should fail to load")
	}
	final := sink.final()
	if final[paths[0]] != loader.StatusDone || final[paths[2]] != loader.StatusError {
		t.Errorf("final statuses = %v", final)
	}

	sink = &recordSink{}
	entries, err = scanFiles(context.Background(), cmd, paths, opts, sink)
	if err != nil {
		t.Fatal(err)
	}
	if !entries[0].Cached || !entries[1].Cached || entries[1].Doc.Probe[0].Value != "42" {
		t.Errorf("second scan not served from cache: %+v", entries)
	}
	if final := sink.final(); final[paths[0]] != loader.StatusCached {
		t.Errorf("second scan statuses = %v", final)
	}

	var buf bytes.Buffer
	writeScanTable(&buf, entries)
	out := buf.String()
	for _, want := range []string{"cached", "class demo.Hello", "error"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}
