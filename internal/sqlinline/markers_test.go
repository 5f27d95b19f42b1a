package sqlinline

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
)

var (
	sqlPattern    = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with)\b`)
	markerPattern = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

// Every query constant starts with a unique "--sql <uuid>" marker so slow
// query logs can be traced back to the statement.
func TestQueriesCarryUniqueMarkers(t *testing.T) {
	paths, err := filepath.Glob("*.go")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	seen := map[string]string{}
	queries := 0
	for _, path := range paths {
		if strings.HasSuffix(path, "_test.go") {
			continue
		}
		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			t.Fatalf("parse %s: %v", path, err)
		}
		ast.Inspect(file, func(n ast.Node) bool {
			spec, ok := n.(*ast.ValueSpec)
			if !ok {
				return true
			}
			for i, value := range spec.Values {
				lit, ok := value.(*ast.BasicLit)
				if !ok || lit.Kind != token.STRING {
					continue
				}
				raw, err := unquote(lit.Value)
				if err != nil || !sqlPattern.MatchString(raw) {
					continue
				}
				queries++
				name := spec.Names[i].Name
				marker := firstLine(raw)
				if !markerPattern.MatchString(marker) {
					t.Errorf("%s:%d %s: missing or invalid --sql <uuid> marker", path, fset.Position(lit.Pos()).Line, name)
					continue
				}
				if prev, dup := seen[marker]; dup {
					t.Errorf("%s reuses the marker of %s", name, prev)
				}
				seen[marker] = name
			}
			return true
		})
	}
	if queries == 0 {
		t.Fatal("no queries found")
	}
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if v != "" && v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}
