package scraper

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Dumper сохраняет сырой HTML страниц, на которых ничего не нашлось.
type Dumper struct {
	dir string
	now func() time.Time
}

func NewDumper(dir string) *Dumper {
	return &Dumper{dir: dir, now: time.Now}
}

func (d *Dumper) Dump(name, html string) (string, error) {
	if d == nil || d.dir == "" {
		return "", nil
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create dump dir: %w", err)
	}

	path := filepath.Join(d.dir, fmt.Sprintf("%s-%s.html", name, d.now().Format("20060102-150405")))
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return "", fmt.Errorf("failed to write dump: %w", err)
	}
	return path, nil
}
