package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/laurenamos/sustainable-model-chooser/internal/openrouter"
)

const indexBody = `{"data":[
  {"id":"b/m2","name":"B Two","pricing":{"prompt":"0.000001"}},
  {"id":"a/m1","name":"A One","context_length":131072,
   "pricing":{"prompt":"0.00000025","completion":"0.00000125"},
   "top_provider":{"is_moderated":true}}
]}`

func testIndex(t *testing.T) openrouter.Index {
	t.Helper()
	idx, err := openrouter.ParseIndex([]byte(indexBody))
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestDiscoverRecordsFilterAndOrder(t *testing.T) {
	records := discoverRecords(testIndex(t), "")
	if len(records) != 2 || records[0].ID != "a/m1" || records[1].ID != "b/m2" {
		t.Fatalf("unexpected records: %+v", records)
	}

	records = discoverRecords(testIndex(t), "m2")
	if len(records) != 1 || records[0].ID != "b/m2" {
		t.Errorf("filter failed: %+v", records)
	}
}

func TestRenderDiscoverTable(t *testing.T) {
	var buf bytes.Buffer
	if err := renderDiscover(&buf, discoverRecords(testIndex(t), ""), "table"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	lines := strings.Split(out, "\n")
	if !strings.HasPrefix(lines[0], "ID") {
		t.Errorf("missing header: %q", lines[0])
	}
	if fields := strings.Fields(lines[1]); len(fields) < 4 || fields[0] != "a/m1" || fields[1] != "131072" || fields[2] != "0.25" || fields[3] != "1.25" {
		t.Errorf("unexpected first row: %q", lines[1])
	}
	if fields := strings.Fields(lines[2]); fields[1] != "-" || fields[2] != "1.0" || fields[3] != "-" {
		t.Errorf("unexpected second row: %q", lines[2])
	}
	if !strings.Contains(out, "Total: 2 models") {
		t.Errorf("missing total:\n%s", out)
	}
}

func TestRenderDiscoverJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := renderDiscover(&buf, discoverRecords(testIndex(t), "a/"), "json"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		`"id": "a/m1"`,
		`"context_length": 131072`,
		`"is_moderated": true`,
		`"pricing_per_mtok_usd": {`,
		`"prompt": 0.25,`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("json output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderDiscoverYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := renderDiscover(&buf, discoverRecords(testIndex(t), "b/"), "yaml"); err != nil {
		t.Fatal(err)
	}
	want := `- id: b/m2
  name: B Two
  context_length: null
  is_moderated: null
  pricing_per_mtok_usd:
    prompt: 1.0
`
	if buf.String() != want {
		t.Errorf("yaml output mismatch:\ngot:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestRenderDiscoverUnknownFormat(t *testing.T) {
	if err := renderDiscover(&bytes.Buffer{}, nil, "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
