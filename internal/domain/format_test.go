package domain

import (
	"bytes"
	"go/format"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Wire structs are edited by hand; keep them in gofmt layout.
func TestSourcesAreGofmted(t *testing.T) {
	paths, err := filepath.Glob("*.go")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	checked := 0
	for _, path := range paths {
		if strings.HasSuffix(path, "_test.go") {
			continue
		}
		src, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		formatted, err := format.Source(src)
		if err != nil {
			t.Fatalf("format %s: %v", path, err)
		}
		if !bytes.Equal(src, formatted) {
			t.Errorf("%s is not gofmt formatted", path)
		}
		checked++
	}
	if checked == 0 {
		t.Fatal("no sources found")
	}
}
