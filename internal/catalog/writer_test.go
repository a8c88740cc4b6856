package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const compactDoc = `{"title":"Chooser","models":[{"id":"m1","tags":["a","b"],"openrouter":{}}],"x":1}`

const prettyDoc = `{
  "title": "Chooser",
  "models": [
    {
      "id": "m1",
      "tags": [
        "a",
        "b"
      ],
      "openrouter": {}
    }
  ],
  "x": 1
}
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBytesFormatting(t *testing.T) {
	doc, err := Parse("models.json", []byte(compactDoc))
	if err != nil {
		t.Fatal(err)
	}
	if got := string(doc.Bytes()); got != prettyDoc {
		t.Errorf("formatted document mismatch:\ngot:\n%s\nwant:\n%s", got, prettyDoc)
	}
}

func TestBytesIsStableOnFormattedInput(t *testing.T) {
	doc, err := Parse("models.json", []byte(prettyDoc))
	if err != nil {
		t.Fatal(err)
	}
	if got := string(doc.Bytes()); got != prettyDoc {
		t.Errorf("re-formatting changed the document:\n%s", got)
	}
}

func TestWriteAtomicReplacesFile(t *testing.T) {
	path := writeTemp(t, compactDoc)
	if err := os.Chmod(path, 0o600); err != nil {
		t.Fatal(err)
	}

	doc, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := doc.SetSyncedAt("2026-10-16T00:00:00.000000+00:00"); err != nil {
		t.Fatal(err)
	}
	if err := NewWriter(true).Write(doc); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.HasSuffix(content, "  \"openrouterSyncedAt\": \"2026-10-16T00:00:00.000000+00:00\"\n}\n") {
		t.Errorf("synced-at key should be appended last with trailing newline:\n%s", content)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("file mode = %v, want 0600", info.Mode().Perm())
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestWritePlainOverwrite(t *testing.T) {
	path := writeTemp(t, compactDoc)
	doc, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := NewWriter(false).Write(doc); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != prettyDoc {
		t.Errorf("unexpected content:\n%s", data)
	}
}

func TestWriteAtomicFailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing-dir", "models.json")
	doc, err := Parse(path, []byte(compactDoc))
	if err != nil {
		t.Fatal(err)
	}
	if err := NewWriter(true).Write(doc); err == nil {
		t.Error("expected error writing into a missing directory")
	}
}
