package scan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverHonorsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".gitignore"), "*.log\nbuild/\n")
	writeFile(t, filepath.Join(root, "main.go"), "package main")
	writeFile(t, filepath.Join(root, "debug.log"), "noise")
	writeFile(t, filepath.Join(root, "build", "out.go"), "package build")

	files, err := Discover(root, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].RelPath != "main.go" {
		t.Fatalf("expected only main.go, got %+v", files)
	}
}

func TestDiscoverPrunesDefaultDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "app.go"), "package src")
	writeFile(t, filepath.Join(root, "node_modules", "pkg", "index.js"), "console.log(1)")
	writeFile(t, filepath.Join(root, ".git", "HEAD"), "ref: refs/heads/main")

	files, err := Discover(root, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		if f.RelPath == "node_modules/pkg/index.js" || strings.HasPrefix(f.RelPath, ".git") {
			t.Fatalf("expected excluded dir to be pruned, got %s", f.RelPath)
		}
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d: %+v", len(files), files)
	}
}

func TestDiscoverIncludeGlobActsAsAllowlist(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.go"), "package main")
	writeFile(t, filepath.Join(root, "readme.md"), "# hi")

	files, err := Discover(root, []string{"*.go"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].RelPath != "main.go" {
		t.Fatalf("expected only main.go via include glob, got %+v", files)
	}
}

func TestDiscoverExcludeGlobWins(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "vendor_stuff.go"), "package v")
	writeFile(t, filepath.Join(root, "main.go"), "package main")

	files, err := Discover(root, nil, []string{"vendor_*.go"})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].RelPath != "main.go" {
		t.Fatalf("expected exclude glob to drop vendor_stuff.go, got %+v", files)
	}
}
