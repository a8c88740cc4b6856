package diff

import (
	"bytes"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/laurenamos/sustainable-model-chooser/internal/catalog"
	"github.com/laurenamos/sustainable-model-chooser/internal/reconcile"
)

// DiffOptions controls diff behavior.
type DiffOptions struct {
	// TrackSyncedAt reports syncedAt changes. Every resolved entry gets a new
	// timestamp on every run, so by default the field is ignored.
	TrackSyncedAt bool
}

// Compute classifies the per-entry outcome of a merge into a changeset.
func Compute(source string, res *reconcile.Result, opts DiffOptions) *ChangeSet {
	cs := &ChangeSet{Source: source}

	for _, er := range res.Entries {
		if er.Status == reconcile.StatusSkipped {
			cs.Skipped++
			continue
		}

		before := gjson.Parse(er.Before)
		hadError := before.IsObject() && before.Get(catalog.FieldSyncError).Exists()
		changes := computeFieldChanges(er.Before, er.After, opts)
		ec := EntryChange{Index: er.Index, Label: er.Label, ID: er.ID, Changes: changes}

		switch {
		case len(changes) == 0 && er.Status == reconcile.StatusUnresolved:
			cs.StillUnresolved++
		case len(changes) == 0:
			cs.Unchanged++
		case er.Status == reconcile.StatusUnresolved:
			cs.NewlyUnresolved = append(cs.NewlyUnresolved, ec)
		case hadError:
			cs.Recovered = append(cs.Recovered, ec)
		default:
			cs.Updated = append(cs.Updated, ec)
		}
	}

	return cs
}

// computeFieldChanges compares two "openrouter" objects key by key. Keys are
// reported in the after object's order, followed by removed keys.
func computeFieldChanges(beforeRaw, afterRaw string, opts DiffOptions) []FieldChange {
	before := objectOrEmpty(beforeRaw)
	after := objectOrEmpty(afterRaw)

	var changes []FieldChange
	seen := make(map[string]bool)

	compare := func(key string) {
		if seen[key] {
			return
		}
		seen[key] = true
		if key == catalog.FieldSyncedAt && !opts.TrackSyncedAt {
			return
		}

		old, cur := before.Get(gjson.Escape(key)), after.Get(gjson.Escape(key))
		if isPricingField(key) && old.IsObject() && cur.IsObject() {
			changes = append(changes, pricingChanges(key, old, cur)...)
			return
		}
		if !sameJSON(old, cur) {
			changes = append(changes, FieldChange{Field: key, OldValue: valueOf(old), NewValue: valueOf(cur)})
		}
	}

	after.ForEach(func(k, _ gjson.Result) bool {
		compare(k.String())
		return true
	})
	before.ForEach(func(k, _ gjson.Result) bool {
		compare(k.String())
		return true
	})

	return changes
}

// pricingChanges reports one change per pricing dimension, e.g.
// "pricing_per_mtok_usd.prompt".
func pricingChanges(field string, old, cur gjson.Result) []FieldChange {
	var changes []FieldChange
	seen := make(map[string]bool)

	compare := func(dim string) {
		if seen[dim] {
			return
		}
		seen[dim] = true
		o, n := old.Get(gjson.Escape(dim)), cur.Get(gjson.Escape(dim))
		if !sameJSON(o, n) {
			changes = append(changes, FieldChange{Field: field + "." + dim, OldValue: valueOf(o), NewValue: valueOf(n)})
		}
	}

	cur.ForEach(func(k, _ gjson.Result) bool {
		compare(k.String())
		return true
	})
	old.ForEach(func(k, _ gjson.Result) bool {
		compare(k.String())
		return true
	})
	return changes
}

func isPricingField(key string) bool {
	return key == catalog.FieldPerToken || key == catalog.FieldPerMTok
}

func objectOrEmpty(raw string) gjson.Result {
	r := gjson.Parse(raw)
	if !r.IsObject() {
		return gjson.Parse("{}")
	}
	return r
}

// sameJSON compares two values ignoring whitespace. Numbers are compared by
// value so 1 and 1.0 are equal.
func sameJSON(a, b gjson.Result) bool {
	if a.Exists() != b.Exists() {
		return false
	}
	if a.Type == gjson.Number && b.Type == gjson.Number {
		return a.Float() == b.Float()
	}
	return bytes.Equal(pretty.Ugly([]byte(a.Raw)), pretty.Ugly([]byte(b.Raw)))
}

func valueOf(r gjson.Result) any {
	if !r.Exists() {
		return nil
	}
	return r.Value()
}
