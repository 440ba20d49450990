package dcache

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"necroverse/internal/export"
)

func sampleDoc() *export.Document {
	return &export.Document{
		Schema: export.Schema,
		Path:   "a.swf",
		Format: "swf",
		Units:  []export.Unit{{Name: "frame:0", Kind: "frame", Size: 4}},
		Probe:  []export.Probe{{Unit: "frame:0", State: "returned"}},
	}
}

func TestPutGet(t *testing.T) {
	c, err := Open(t.TempDir(), "necro")
	if err != nil {
		t.Fatal(err)
	}
	key := sha256.Sum256([]byte("a"))
	if _, ok, err := c.Get(key, false); ok || err != nil {
		t.Fatalf("empty cache hit: %v %v", ok, err)
	}
	if err := c.Put(key, sampleDoc(), false); err != nil {
		t.Fatal(err)
	}
	doc, ok, err := c.Get(key, false)
	if err != nil || !ok {
		t.Fatalf("miss after put: %v", err)
	}
	if doc.Path != "a.swf" || len(doc.Units) != 1 || doc.Probe[0].State != "returned" {
		t.Errorf("doc = %+v", doc)
	}
	if _, ok, _ := c.Get(key, true); ok {
		t.Error("unprobed entry served a probe request")
	}
	if err := c.Put(key, sampleDoc(), true); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(key, true); !ok {
		t.Error("probed entry missed")
	}
}

func TestCorruptEntryIsError(t *testing.T) {
	c, err := Open(t.TempDir(), "necro")
	if err != nil {
		t.Fatal(err)
	}
	key := sha256.Sum256([]byte("b"))
	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte{0xc1}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Get(key, false); ok || err == nil {
		t.Errorf("corrupt entry: ok=%v err=%v", ok, err)
	}
}

func TestDropAll(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "cache"), "necro")
	if err != nil {
		t.Fatal(err)
	}
	key := sha256.Sum256([]byte("c"))
	if err := c.Put(key, sampleDoc(), false); err != nil {
		t.Fatal(err)
	}
	if err := c.DropAll(); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(key, false); ok {
		t.Error("entry survived DropAll")
	}
	if err := c.Put(key, sampleDoc(), false); err != nil {
		t.Errorf("put after DropAll: %v", err)
	}
}

func TestNilCacheIsDisabled(t *testing.T) {
	var c *Cache
	if err := c.Put([32]byte{}, sampleDoc(), false); err != nil {
		t.Error(err)
	}
	if _, ok, err := c.Get([32]byte{}, false); ok || err != nil {
		t.Errorf("nil cache: ok=%v err=%v", ok, err)
	}
}

func TestOpenDefaultsToXDG(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", base)
	c, err := Open("", "necro")
	if err != nil {
		t.Fatal(err)
	}
	if c.Dir() != filepath.Join(base, "necro") {
		t.Errorf("dir = %q", c.Dir())
	}
}
