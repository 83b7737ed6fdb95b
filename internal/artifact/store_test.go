package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStorePaths(t *testing.T) {
	s := NewStore("/r")
	tests := []struct {
		got, want string
	}{
		{s.IndexPath("t", "c"), "/r/output/t/corp-c.ids"},
		{s.OutputPath("t", "c", "morph"), "/r/output/t/c/output-c-morph.txt"},
		{s.ScratchDir("t"), "/r/output/t/_tmp"},
		{s.BaselinePath("t", "c", "morph", false), "/r/expected/t/c/expected-c-morph.txt"},
		{s.BaselinePath("t", "c", "morph", true), "/r/local/expected/t/c/expected-c-morph.txt"},
		{s.GoldPath("t", "c", false), "/r/expected/t/c/gold-c.txt"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %s, want %s", tt.got, tt.want)
		}
	}
}

func TestStoreWriteGoldRemovesEmpty(t *testing.T) {
	s := NewStore(t.TempDir())
	path := s.GoldPath("t", "c", false)

	if err := s.WriteGold(path, []Gold{{ID: "a", Candidates: []string{"x"}}}); err != nil {
		t.Fatalf("WriteGold: %v", err)
	}
	if !s.Exists(path) {
		t.Fatal("gold file should exist")
	}

	if err := s.WriteGold(path, []Gold{{ID: "a"}}); err != nil {
		t.Fatalf("WriteGold empty: %v", err)
	}
	if s.Exists(path) {
		t.Error("gold file should be removed once no candidates remain")
	}
}

func TestStoreReadMissing(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.ReadBlocks(filepath.Join(s.Root, "nope.txt"))
	if !errors.Is(err, ErrMissing) {
		t.Errorf("expected ErrMissing, got %v", err)
	}
}

func TestStoreManagedFiles(t *testing.T) {
	s := NewStore(t.TempDir())

	if files, err := s.ManagedFiles("t", false); err != nil || len(files) != 0 {
		t.Fatalf("empty tree: files=%v err=%v", files, err)
	}

	for _, p := range []string{
		s.BaselinePath("t", "c1", "a", false),
		s.BaselinePath("t", "c2", "b", false),
		s.GoldPath("t", "c1", false),
		s.BaselinePath("t", "c3", "a", true),
	} {
		if err := s.WriteBlocks(p, []Block{{ID: "x", Text: "y"}}); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(s.BaselineDir("t", "c1", false), "notes.md"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	files, err := s.ManagedFiles("t", false)
	if err != nil {
		t.Fatalf("ManagedFiles: %v", err)
	}
	if len(files) != 3 {
		t.Errorf("expected 3 managed files, got %v", files)
	}

	files, err = s.ManagedFiles("t", true)
	if err != nil {
		t.Fatalf("ManagedFiles local: %v", err)
	}
	if want := s.BaselinePath("t", "c3", "a", true); len(files) != 1 || files[0] != want {
		t.Errorf("local files = %v, want [%s]", files, want)
	}
}

func TestStoreCopy(t *testing.T) {
	s := NewStore(t.TempDir())
	src := s.OutputPath("t", "c", "a")
	if err := s.WriteBlocks(src, []Block{{ID: "x", Text: "y"}}); err != nil {
		t.Fatal(err)
	}
	dst := s.BaselinePath("t", "c", "a", false)
	if err := s.Copy(src, dst); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	got, err := s.ReadBlocks(dst)
	if err != nil {
		t.Fatal(err)
	}
	if got["x"].Text != "y" {
		t.Errorf("copied block = %+v", got["x"])
	}
}
