package cache_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loomworks/loom/internal/adapters/cache"
	"github.com/loomworks/loom/internal/core/ports"
)

func TestStore_SetAndGet(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := cache.NewStore(filepath.Join(tmpDir, "state"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if err := store.Set("data", ports.NamespaceObjects, []byte(`{"value":42}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get("data", ports.NamespaceObjects)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"value":42}` {
		t.Errorf("unexpected value: %s", got)
	}
}

func TestStore_GetAbsentReturnsNil(t *testing.T) {
	store, err := cache.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	got, err := store.Get("nope", ports.NamespaceMeta)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for absent key, got %s", got)
	}
}

func TestStore_NamespacesAreSegregated(t *testing.T) {
	store, err := cache.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if err := store.Set("data", ports.NamespaceObjects, []byte(`1`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set("data", ports.NamespaceMeta, []byte(`2`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	obj, _ := store.Get("data", ports.NamespaceObjects)
	meta, _ := store.Get("data", ports.NamespaceMeta)
	if string(obj) != `1` || string(meta) != `2` {
		t.Errorf("namespaces bleed into each other: objects=%s meta=%s", obj, meta)
	}

	if err := store.Delete("data", ports.NamespaceObjects); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got, _ := store.Get("data", ports.NamespaceMeta); string(got) != `2` {
		t.Error("delete in one namespace affected another")
	}
}

func TestStore_Persistence(t *testing.T) {
	root := filepath.Join(t.TempDir(), "state")

	store1, err := cache.NewStore(root)
	if err != nil {
		t.Fatalf("NewStore 1 failed: %v", err)
	}
	if err := store1.Set("report", ports.NamespaceMeta, []byte(`{"command_hash":"abc"}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	store2, err := cache.NewStore(root)
	if err != nil {
		t.Fatalf("NewStore 2 failed: %v", err)
	}
	got, err := store2.Get("report", ports.NamespaceMeta)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !strings.Contains(string(got), "abc") {
		t.Errorf("expected persisted value, got %s", got)
	}

	// One file per namespace on disk.
	if _, err := os.Stat(filepath.Join(root, "meta.json")); err != nil {
		t.Errorf("expected meta.json on disk: %v", err)
	}
}

func TestStore_ListAndExists(t *testing.T) {
	store, err := cache.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	for _, key := range []string{"b", "a", "c"} {
		if err := store.Set(key, ports.NamespaceObjects, []byte(`null`)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	keys, err := store.List(ports.NamespaceObjects)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Errorf("expected sorted keys [a b c], got %v", keys)
	}

	ok, err := store.Exists("b", ports.NamespaceObjects)
	if err != nil || !ok {
		t.Errorf("expected b to exist, ok=%v err=%v", ok, err)
	}
	ok, err = store.Exists("b", ports.NamespaceConfig)
	if err != nil || ok {
		t.Errorf("expected b to be absent from config namespace, ok=%v err=%v", ok, err)
	}
}
