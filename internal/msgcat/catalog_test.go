package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderEmbedsBanner(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := c.Render("lookup.ok", map[string]any{"Player": "Bob", "X": 12, "Y": 0, "Z": 5})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	banner, _ := c.Render("banner.normal", nil)
	if !strings.HasPrefix(out, banner) || !strings.HasSuffix(out, "Bob玩家目前位置在 12 0 5") {
		t.Fatalf("unexpected render: %q", out)
	}
}

func TestRenderMissingKeyAndData(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Render("nope.nothing", nil); err == nil {
		t.Fatalf("expected error for missing template")
	}
	if _, err := c.Render("unknown_command", map[string]any{}); err == nil {
		t.Fatalf("expected error for missing data key")
	}
}

func TestLinesSplitsHelp(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	lines, err := c.Lines("help.body", map[string]any{"Prefix": "%"})
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	if len(lines) != 9 {
		t.Fatalf("expected 9 help lines, got %d: %q", len(lines), lines)
	}
	if !strings.HasPrefix(lines[1], "1. %开盒") {
		t.Fatalf("unexpected first entry: %q", lines[1])
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("unknown_command: 'unknown: {{.Command}}'\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := c.Render("unknown_command", map[string]any{"Command": "foo"})
	if err != nil || out != "unknown: foo" {
		t.Fatalf("override not applied: %q %v", out, err)
	}
}

func TestOverrideDirDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("denied: 'no'\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}

func TestNonStringLeafRejected(t *testing.T) {
	if _, err := parseYAMLToFlat([]byte("a:\n  b: 3\n")); err == nil {
		t.Fatalf("expected error for non-string leaf")
	}
}
