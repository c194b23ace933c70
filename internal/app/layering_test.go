package app

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const modulePrefix = "lot-watcher/internal/"

// internalImports: пакет -> внутренние пакеты, которые он импортирует (без тестов).
func internalImports(t *testing.T, root string) map[string][]string {
	t.Helper()
	graph := map[string][]string{}

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return err
		}
		file, err := parser.ParseFile(token.NewFileSet(), path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, filepath.Dir(path))
		if err != nil {
			return err
		}
		pkg := filepath.ToSlash(rel)
		for _, spec := range file.Imports {
			imp, _ := strconv.Unquote(spec.Path.Value)
			if strings.HasPrefix(imp, modulePrefix) {
				graph[pkg] = append(graph[pkg], strings.TrimPrefix(imp, modulePrefix))
			}
		}
		return nil
	})
	require.NoError(t, err)
	return graph
}

func TestInternalPackagesHaveNoImportCycles(t *testing.T) {
	graph := internalImports(t, "..")
	require.NotEmpty(t, graph["scraper"])

	const (
		unvisited = iota
		visiting
		done
	)
	state := map[string]int{}
	var path []string

	var visit func(pkg string)
	visit = func(pkg string) {
		switch state[pkg] {
		case visiting:
			t.Fatalf("import cycle: %s -> %s", strings.Join(path, " -> "), pkg)
		case done:
			return
		}
		state[pkg] = visiting
		path = append(path, pkg)
		for _, dep := range graph[pkg] {
			visit(dep)
		}
		path = path[:len(path)-1]
		state[pkg] = done
	}

	for pkg := range graph {
		visit(pkg)
	}
}

func TestSourceIsLeafPackage(t *testing.T) {
	graph := internalImports(t, "..")
	require.Empty(t, graph["source"])
	require.NotContains(t, graph["scraper"], "fetcher")
	require.Contains(t, graph["fetcher"], "source")
}
