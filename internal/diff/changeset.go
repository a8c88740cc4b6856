package diff

// ChangeSet describes what a sync changes in the catalog document.
type ChangeSet struct {
	Source          string
	Updated         []EntryChange // resolved entries whose fields change
	NewlyUnresolved []EntryChange // entries gaining or changing a sync_error
	Recovered       []EntryChange // entries whose sync_error is cleared
	StillUnresolved int
	Unchanged       int
	Skipped         int
}

// EntryChange is one catalog entry with its field changes.
type EntryChange struct {
	Index   int
	Label   string
	ID      string
	Changes []FieldChange
}

// FieldChange records a single field change under the entry's "openrouter"
// object. Pricing fields are reported per dimension, e.g.
// "pricing_per_mtok_usd.prompt".
type FieldChange struct {
	Field    string
	OldValue any
	NewValue any
}

// HasChanges reports whether the changeset has any modifications.
func (cs *ChangeSet) HasChanges() bool {
	return len(cs.Updated) > 0 || len(cs.NewlyUnresolved) > 0 || len(cs.Recovered) > 0
}

// TotalChanged returns the count of entries whose content changes.
func (cs *ChangeSet) TotalChanged() int {
	return len(cs.Updated) + len(cs.NewlyUnresolved) + len(cs.Recovered)
}
