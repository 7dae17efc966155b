package main

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

const modulePath = "github.com/matheus3301/wachat"

// localImports lists the non-test imports of the package in dir.
func localImports(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var out []string
	fset := token.NewFileSet()
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			t.Fatal(err)
		}
		for _, imp := range f.Imports {
			path, _ := strconv.Unquote(imp.Path.Value)
			out = append(out, path)
		}
	}
	return out
}

// The client binary talks to the daemon over HTTP and websocket only; it
// must not link the SQLite driver or the ingestion engine.
func TestClientDoesNotLinkStore(t *testing.T) {
	root := filepath.Join("..", "..")
	banned := map[string]bool{
		modulePath + "/internal/store": true,
		modulePath + "/internal/sync":  true,
		"github.com/mattn/go-sqlite3":   true,
	}

	seen := map[string]string{".": "cmd/wachattui"}
	queue := []string{"cmd/wachattui"}
	for len(queue) > 0 {
		pkg := queue[0]
		queue = queue[1:]
		for _, imp := range localImports(t, filepath.Join(root, pkg)) {
			if banned[imp] || strings.HasPrefix(imp, "github.com/golang-migrate/") {
				t.Errorf("%s imports %s", pkg, imp)
				continue
			}
			rel, ok := strings.CutPrefix(imp, modulePath+"/")
			if !ok {
				continue
			}
			if _, done := seen[rel]; done {
				continue
			}
			seen[rel] = pkg
			queue = append(queue, rel)
		}
	}
	if _, ok := seen["internal/chat"]; !ok {
		t.Error("internal/chat not reached; the walk is not following imports")
	}
}
