package library_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"interlace/internal/library"
)

func TestLoadMemoizesContent(t *testing.T) {
	reads := 0
	loader := library.NewLoader("/support",
		library.WithReadFile(func(path string) ([]byte, error) {
			reads++
			return []byte("declare var window;"), nil
		}),
		library.WithStat(func(path string) (os.FileInfo, error) {
			return nil, errors.New("no such file")
		}),
	)

	a := loader.Load("extra.d.ts")
	b := loader.Load("extra.d.ts")
	if a != "declare var window;" || a != b {
		t.Errorf("got %q then %q", a, b)
	}
	if reads != 1 {
		t.Errorf("expected a single read, got %d", reads)
	}
}

func TestLoadMissingFileMemoizedAsEmpty(t *testing.T) {
	reads := 0
	loader := library.NewLoader("/support",
		library.WithReadFile(func(path string) ([]byte, error) {
			reads++
			return nil, errors.New("no such file")
		}),
		library.WithStat(func(path string) (os.FileInfo, error) {
			return nil, errors.New("no such file")
		}),
	)

	if got := loader.Load(library.DefaultLibrary); got != "" {
		t.Errorf("expected empty content for missing library, got %q", got)
	}
	if got := loader.Load(library.DefaultLibrary); got != "" {
		t.Errorf("second lookup: expected empty content, got %q", got)
	}
	if reads != 1 {
		t.Errorf("second lookup must not hit the filesystem; reads = %d", reads)
	}
}

func TestResolveAliasAndRelative(t *testing.T) {
	var paths []string
	loader := library.NewLoader("/support",
		library.WithReadFile(func(path string) ([]byte, error) {
			paths = append(paths, path)
			return []byte("x"), nil
		}),
		library.WithStat(func(path string) (os.FileInfo, error) {
			return nil, errors.New("no such file")
		}),
	)

	loader.Load(library.DefaultLibrary)
	loader.Load("custom.d.ts")

	if len(paths) != 2 {
		t.Fatalf("expected 2 reads, got %d", len(paths))
	}
	if paths[0] != filepath.Join("/support", "typedefs", library.DefaultLibrary) {
		t.Errorf("alias resolved to %q", paths[0])
	}
	if paths[1] != filepath.Join("/support", "custom.d.ts") {
		t.Errorf("relative name resolved to %q", paths[1])
	}
}

func TestResolveExistingPathVerbatim(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "on-disk.d.ts")
	if err := os.WriteFile(path, []byte("declare var x;"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	loader := library.NewLoader("/support")
	if got := loader.Load(path); got != "declare var x;" {
		t.Errorf("expected verbatim read of existing path, got %q", got)
	}
}
