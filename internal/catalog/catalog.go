package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// Top-level and per-entry keys owned by the sync.
const (
	ModelsKey     = "models"
	SyncedAtKey   = "openrouterSyncedAt"
	OpenRouterKey = "openrouter"
)

// ErrInvalidDocument is returned when the catalog is not a JSON object with
// a "models" list.
var ErrInvalidDocument = errors.New("invalid catalog document")

var prettyOptions = &pretty.Options{Width: 0, Prefix: "", Indent: "  ", SortKeys: false}

// Document is the local catalog (data/models.json) held as raw JSON so that
// key order survives every edit.
type Document struct {
	Path string
	raw  []byte
}

// Load reads and checks the catalog at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(path, data)
}

// Parse checks data and wraps it as a Document for path.
func Parse(path string, data []byte) (*Document, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: %s is not valid JSON", ErrInvalidDocument, path)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: %s is not a JSON object", ErrInvalidDocument, path)
	}
	if !root.Get(ModelsKey).IsArray() {
		return nil, fmt.Errorf("%w: %s has no %q list", ErrInvalidDocument, path, ModelsKey)
	}

	raw := make([]byte, len(data))
	copy(raw, data)
	return &Document{Path: path, raw: bytes.TrimSpace(raw)}, nil
}

// Clone returns an independent copy of the document.
func (d *Document) Clone() *Document {
	raw := make([]byte, len(d.raw))
	copy(raw, d.raw)
	return &Document{Path: d.Path, raw: raw}
}

// Len returns the number of model entries.
func (d *Document) Len() int {
	return int(gjson.GetBytes(d.raw, ModelsKey+".#").Int())
}

// Entries returns the model entries in document order.
func (d *Document) Entries() []Entry {
	items := gjson.GetBytes(d.raw, ModelsKey).Array()
	entries := make([]Entry, len(items))
	for i, item := range items {
		entries[i] = Entry{Index: i, raw: item}
	}
	return entries
}

// Entry returns the entry at position i.
func (d *Document) Entry(i int) Entry {
	return Entry{Index: i, raw: gjson.GetBytes(d.raw, entryPath(i))}
}

// SetOpenRouter replaces the "openrouter" object of entry i with obj,
// creating the key at the end of the entry when it is missing.
func (d *Document) SetOpenRouter(i int, obj []byte) error {
	if !gjson.GetBytes(d.raw, entryPath(i)).IsObject() {
		return fmt.Errorf("%w: entry %d is not an object", ErrInvalidDocument, i)
	}
	raw, err := sjson.SetRawBytes(d.raw, entryPath(i)+"."+OpenRouterKey, obj)
	if err != nil {
		return fmt.Errorf("setting %s on entry %d: %w", OpenRouterKey, i, err)
	}
	d.raw = raw
	return nil
}

// SyncedAt returns the top-level last sync timestamp, if any.
func (d *Document) SyncedAt() string {
	return gjson.GetBytes(d.raw, SyncedAtKey).String()
}

// SetSyncedAt stamps the top-level last sync timestamp.
func (d *Document) SetSyncedAt(ts string) error {
	raw, err := sjson.SetBytes(d.raw, SyncedAtKey, ts)
	if err != nil {
		return fmt.Errorf("setting %s: %w", SyncedAtKey, err)
	}
	d.raw = raw
	return nil
}

// Raw returns the document bytes as currently held, unformatted.
func (d *Document) Raw() []byte {
	return d.raw
}

// Bytes renders the document with two-space indentation, one element per
// line, original key order and a trailing newline.
func (d *Document) Bytes() []byte {
	out := pretty.PrettyOptions(d.raw, prettyOptions)
	if len(out) == 0 || out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	return out
}

func entryPath(i int) string {
	return ModelsKey + "." + strconv.Itoa(i)
}
