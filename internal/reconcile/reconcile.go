// Package reconcile merges an OpenRouter index into the catalog document.
package reconcile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidwall/sjson"

	"github.com/laurenamos/sustainable-model-chooser/internal/catalog"
	"github.com/laurenamos/sustainable-model-chooser/internal/openrouter"
	"github.com/laurenamos/sustainable-model-chooser/internal/pricing"
)

// TimeLayout is the ISO-8601 UTC form used for every sync timestamp.
const TimeLayout = "2006-01-02T15:04:05.000000-07:00"

// Timestamp formats t in TimeLayout after converting it to UTC.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Status is the outcome for a single entry.
type Status string

const (
	StatusUpdated    Status = "updated"
	StatusUnresolved Status = "unresolved"
	StatusSkipped    Status = "skipped"
)

// EntryResult records what happened to one entry. Before and After hold the
// entry's "openrouter" JSON around the merge (empty for skipped entries).
type EntryResult struct {
	Index  int
	Label  string
	ID     string
	Status Status
	Before string
	After  string
}

// Result summarises a merge.
type Result struct {
	Updated    int
	Unresolved int
	Skipped    int
	Entries    []EntryResult
}

// Options controls a merge.
type Options struct {
	// Source is the endpoint URL recorded on every updated entry.
	Source string
	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// UnresolvedMessage is the sync_error text for an id missing from the index.
func UnresolvedMessage(id string) string {
	return fmt.Sprintf("OpenRouter id not found: %s", id)
}

// Merge walks the document's entries in order and applies the index to every
// entry that declares an openrouter id. It mutates doc in place.
func Merge(doc *catalog.Document, idx openrouter.Index, opts Options) (*Result, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	res := &Result{}
	for _, e := range doc.Entries() {
		er := EntryResult{Index: e.Index, Label: e.Label()}

		id, ok := e.OpenRouterID()
		if !ok {
			er.Status = StatusSkipped
			res.Skipped++
			res.Entries = append(res.Entries, er)
			continue
		}
		er.ID = id

		before := e.OpenRouter()
		obj := "{}"
		if before.IsObject() {
			obj = before.Raw
		}
		er.Before = before.Raw

		var err error
		m, found := idx.Lookup(id)
		if !found {
			obj, err = markUnresolved(obj, id)
			er.Status = StatusUnresolved
		} else {
			obj, err = apply(obj, m, opts.Source, Timestamp(now()))
			er.Status = StatusUpdated
		}
		if err != nil {
			return nil, fmt.Errorf("merging entry %d (%s): %w", e.Index, id, err)
		}

		if err := doc.SetOpenRouter(e.Index, []byte(obj)); err != nil {
			return nil, err
		}
		er.After = obj

		switch er.Status {
		case StatusUpdated:
			res.Updated++
			slog.Debug("entry updated", "entry", er.Label, "id", id)
		case StatusUnresolved:
			res.Unresolved++
			slog.Debug("entry unresolved", "entry", er.Label, "id", id)
		}
		res.Entries = append(res.Entries, er)
	}

	return res, nil
}

func markUnresolved(obj, id string) (string, error) {
	return sjson.Set(obj, catalog.FieldSyncError, UnresolvedMessage(id))
}

// apply overwrites the sync-owned fields of obj with m and clears a previous
// sync_error. Keys already present keep their position.
func apply(obj string, m *openrouter.Model, source, syncedAt string) (string, error) {
	derived := pricing.Derive(m.Pricing)
	perToken, err := json.Marshal(derived.PerToken)
	if err != nil {
		return "", err
	}
	perMTok, err := json.Marshal(derived.PerMTok)
	if err != nil {
		return "", err
	}

	contextLength := "null"
	if len(m.ContextLength) > 0 {
		contextLength = string(m.ContextLength)
	}
	moderated := "null"
	if m.IsModerated != nil {
		moderated = fmt.Sprint(*m.IsModerated)
	}

	steps := []struct {
		key string
		raw string
		str *string
	}{
		{key: catalog.FieldName, str: &m.Name},
		{key: catalog.FieldContext, raw: contextLength},
		{key: catalog.FieldModerated, raw: moderated},
		{key: catalog.FieldPerToken, raw: string(perToken)},
		{key: catalog.FieldPerMTok, raw: string(perMTok)},
		{key: catalog.FieldSource, str: &source},
		{key: catalog.FieldSyncedAt, str: &syncedAt},
	}
	for _, s := range steps {
		if s.str != nil {
			obj, err = sjson.Set(obj, s.key, *s.str)
		} else {
			obj, err = sjson.SetRaw(obj, s.key, s.raw)
		}
		if err != nil {
			return "", fmt.Errorf("setting %s: %w", s.key, err)
		}
	}

	return sjson.Delete(obj, catalog.FieldSyncError)
}
