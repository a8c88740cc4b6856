package catalog

import (
	"strconv"

	"github.com/tidwall/gjson"
)

// Fields under an entry's "openrouter" object written by the sync.
const (
	FieldID        = "id"
	FieldName      = "name"
	FieldContext   = "context_length"
	FieldModerated = "is_moderated"
	FieldPerToken  = "pricing_per_token_usd"
	FieldPerMTok   = "pricing_per_mtok_usd"
	FieldSource    = "source"
	FieldSyncedAt  = "syncedAt"
	FieldSyncError = "sync_error"
)

// Entry is one element of the "models" list.
type Entry struct {
	Index int
	raw   gjson.Result
}

// IsObject reports whether the entry is a JSON object.
func (e Entry) IsObject() bool {
	return e.raw.IsObject()
}

// OpenRouter returns the entry's "openrouter" value (may not exist).
func (e Entry) OpenRouter() gjson.Result {
	return e.raw.Get(OpenRouterKey)
}

// OpenRouterID returns the reference key into the remote catalog. Entries
// whose id is absent or falsy (null, false, "", 0, empty object or list)
// report ok == false and are not synced. Non-string ids are returned as
// their JSON text.
func (e Entry) OpenRouterID() (string, bool) {
	if !e.raw.IsObject() {
		return "", false
	}
	or := e.raw.Get(OpenRouterKey)
	if !or.IsObject() {
		return "", false
	}

	id := or.Get(FieldID)
	switch id.Type {
	case gjson.String:
		return id.Str, id.Str != ""
	case gjson.Number:
		return id.Raw, id.Num != 0
	case gjson.True:
		return id.Raw, true
	case gjson.JSON:
		empty := true
		id.ForEach(func(_, _ gjson.Result) bool {
			empty = false
			return false
		})
		return id.Raw, !empty
	default:
		return "", false
	}
}

// Label names the entry for logs: its "name", else its "id", else its
// position.
func (e Entry) Label() string {
	for _, key := range []string{"name", "id"} {
		if v := e.raw.Get(key); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return "#" + strconv.Itoa(e.Index)
}

// Raw returns the entry's JSON text.
func (e Entry) Raw() string {
	return e.raw.Raw
}
