package recipe

import (
	"os"
	"path/filepath"
	"testing"
)

// writeRecipes populates a temp directory with recipe files keyed by id.
func writeRecipes(t *testing.T, files map[string]string) *Store {
	t.Helper()
	dir := t.TempDir()
	for id, content := range files {
		if err := os.WriteFile(filepath.Join(dir, id+".yml"), []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write recipe %s: %v", id, err)
		}
	}
	return NewStore(dir)
}

func TestStoreResolveByIDAndCommand(t *testing.T) {
	store := writeRecipes(t, map[string]string{
		"ripgrep": "provides: rg\napt: ripgrep",
	})

	if id, ok := store.Resolve("ripgrep"); !ok || id != "ripgrep" {
		t.Errorf("Expected id resolution, got %q (ok=%v)", id, ok)
	}
	if id, ok := store.Resolve("rg"); !ok || id != "ripgrep" {
		t.Errorf("Expected command resolution, got %q (ok=%v)", id, ok)
	}
	if _, ok := store.Resolve("nonexistent"); ok {
		t.Error("Expected unknown target to not resolve")
	}
}

func TestStoreNameFallbackIndexing(t *testing.T) {
	store := writeRecipes(t, map[string]string{
		"mytool": "name: mytool-bin\napt: mytool",
	})

	// Without provides, the recipe name stands in for command resolution.
	if id, ok := store.Resolve("mytool-bin"); !ok || id != "mytool" {
		t.Errorf("Expected name-fallback resolution, got %q (ok=%v)", id, ok)
	}
}

func TestStoreSkipsMalformedRecipes(t *testing.T) {
	store := writeRecipes(t, map[string]string{
		"good": "apt: good-pkg",
		"bad":  "apt: x\napt_repo: not-enough-fields",
	})

	if _, ok := store.Get("good"); !ok {
		t.Error("Expected good recipe to load")
	}
	if _, ok := store.Get("bad"); ok {
		t.Error("Expected malformed recipe to be skipped")
	}

	recipes, err := store.All()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(recipes) != 1 {
		t.Errorf("Expected 1 recipe, got %d", len(recipes))
	}
}

func TestStoreLoadIsGuarded(t *testing.T) {
	store := writeRecipes(t, map[string]string{
		"tool": "apt: tool",
	})
	if err := store.Load(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	// A repeated load must be a no-op, not a rescan.
	if err := store.Load(); err != nil {
		t.Fatalf("Expected repeated load to be a no-op, got: %v", err)
	}
}

func TestStoreIgnoresNonRecipeFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# recipes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tool.yaml"), []byte("apt: tool"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(dir)
	recipes, err := store.All()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(recipes) != 1 || recipes[0].ID != "tool" {
		t.Errorf("Expected only tool.yaml to load, got %d recipes", len(recipes))
	}
}

func TestStoreMissingDirectory(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing"))
	if err := store.Load(); err == nil {
		t.Error("Expected error for missing recipes directory")
	}
}
