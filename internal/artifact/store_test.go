package artifact

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	t.Run("LoadMissing", func(t *testing.T) {
		_, found, err := store.Load("isolation_forest")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if found {
			t.Error("expected missing artifact to report found=false")
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		data := []byte("model-bytes")
		if err := store.Save("isolation_forest", data); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		got, found, err := store.Load("isolation_forest")
		if err != nil {
			t.Fatalf("failed to load: %v", err)
		}
		if !found {
			t.Fatal("expected artifact to be found")
		}
		if !bytes.Equal(got, data) {
			t.Errorf("artifact round trip mismatch: %q", got)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		if err := store.Save("isolation_forest", []byte("v2")); err != nil {
			t.Fatalf("failed to overwrite: %v", err)
		}
		got, _, err := store.Load("isolation_forest")
		if err != nil {
			t.Fatalf("failed to load: %v", err)
		}
		if string(got) != "v2" {
			t.Errorf("expected overwritten artifact, got %q", got)
		}
	})
}

func TestFileStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "models")
	if _, err := NewFileStore(dir); err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("expected directory to exist: %v", err)
	}
}

func TestFileStoreNoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.Save("scaler", []byte("data")); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly one file after save, got %d", len(entries))
	}
}
