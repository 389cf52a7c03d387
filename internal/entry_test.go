package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/onexport/internal/testutil"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Export.Root = filepath.Join(dir, "site")
	cfg.SQLite.Path = filepath.Join(dir, "db", "onexport.db")
	return cfg
}

func TestExport_WritesTreeAndReport(t *testing.T) {
	cfg := testConfig(t)
	in := testutil.WriteFile(t, t.TempDir(), "hierarchy.xml", testutil.SampleHierarchy())

	var out bytes.Buffer
	err := Export(context.Background(),
		WithConfig(cfg),
		WithInput(in),
		WithOutput(&out),
		WithLogOutput(io.Discard),
	)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	var rep struct {
		NotebookSlug string `json:"notebook_slug"`
		Written      int    `json:"written"`
		Outcome      string `json:"outcome"`
	}
	if err := json.Unmarshal(out.Bytes(), &rep); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out.String())
	}
	if rep.NotebookSlug != "work-notes" || rep.Written != 2 || rep.Outcome != "success" {
		t.Errorf("report = %+v", rep)
	}

	nbDir := filepath.Join(cfg.Export.Root, "_notebooks", "work-notes")
	for _, rel := range []string{"notebook.xml", "projects/kickoff.yaml", "projects/follow-up.yaml", "empty"} {
		if _, err := os.Stat(filepath.Join(nbDir, rel)); err != nil {
			t.Errorf("missing %s: %v", rel, err)
		}
	}
}

func TestExport_RequiresInput(t *testing.T) {
	err := Export(context.Background(), WithConfig(testConfig(t)), WithLogOutput(io.Discard))
	if err == nil || !strings.Contains(err.Error(), "no hierarchy input") {
		t.Fatalf("err = %v", err)
	}
}

func TestExport_RequiresConfig(t *testing.T) {
	if err := Export(context.Background()); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestReindex_RebuildsFromDisk(t *testing.T) {
	cfg := testConfig(t)
	in := testutil.WriteFile(t, t.TempDir(), "hierarchy.xml", testutil.SampleHierarchy())

	if err := Export(context.Background(), WithConfig(cfg), WithInput(in),
		WithOutput(io.Discard), WithLogOutput(io.Discard)); err != nil {
		t.Fatalf("Export: %v", err)
	}

	// Start over with an empty catalogue; the tree on disk is the source.
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "fresh.db")
	var out bytes.Buffer
	if err := Reindex(context.Background(), WithConfig(cfg), WithOutput(&out), WithLogOutput(io.Discard)); err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if !strings.HasPrefix(out.String(), "reindexed 1 notebook(s)") {
		t.Errorf("output = %q", out.String())
	}
}
