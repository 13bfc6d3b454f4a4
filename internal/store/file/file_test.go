package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alfredjeanlab/clawnet/internal/model"
	"github.com/alfredjeanlab/clawnet/internal/store"
)

func TestFileStore_LoadMissing(t *testing.T) {
	fs, err := New(filepath.Join(t.TempDir(), "nested", "state.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := fs.Load(context.Background()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestFileStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	fs, err := New(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	st := &store.State{
		Log:         []model.LogEntry{{ID: "e1", Origin: "jon", WallClock: 5, Clock: model.VectorClock{"jon": 1}}},
		VectorClock: model.VectorClock{"jon": 1},
		Patterns:    map[string]model.PatternRecord{},
		Metadata:    store.Metadata{PeerID: "jon", Version: store.StateVersion},
	}
	if err := fs.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Log) != 1 || got.Log[0].ID != "e1" {
		t.Errorf("Load().Log = %+v", got.Log)
	}
	if got.VectorClock["jon"] != 1 {
		t.Errorf("Load().VectorClock = %v", got.VectorClock)
	}
	if got.Metadata.PeerID != "jon" {
		t.Errorf("Load().Metadata.PeerID = %q", got.Metadata.PeerID)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Dir(fs.Path()))
	if len(entries) != 1 {
		t.Errorf("expected only the state file, found %d entries", len(entries))
	}
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(`{"log": [`), 0o644); err != nil {
		t.Fatal(err)
	}
	fs, _ := New(path)
	_, err := fs.Load(context.Background())
	if err == nil || errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Load() error = %v, want decode error", err)
	}
}
