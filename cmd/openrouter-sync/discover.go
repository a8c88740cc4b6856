package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/laurenamos/sustainable-model-chooser/internal/openrouter"
	"github.com/laurenamos/sustainable-model-chooser/internal/pricing"
)

type discoverRecord struct {
	ID            string         `json:"id" yaml:"id"`
	Name          string         `json:"name" yaml:"name"`
	ContextLength any            `json:"context_length" yaml:"context_length"`
	IsModerated   *bool          `json:"is_moderated" yaml:"is_moderated"`
	PerMTok       pricing.Prices `json:"pricing_per_mtok_usd" yaml:"pricing_per_mtok_usd"`
}

// discoverRecords flattens the index into id order, keeping ids that contain
// filter.
func discoverRecords(idx openrouter.Index, filter string) []discoverRecord {
	records := make([]discoverRecord, 0, len(idx))
	for _, id := range idx.IDs() {
		if filter != "" && !strings.Contains(id, filter) {
			continue
		}
		m := idx[id]

		var contextLength any
		if len(m.ContextLength) > 0 {
			_ = json.Unmarshal(m.ContextLength, &contextLength)
		}

		records = append(records, discoverRecord{
			ID:            m.ID,
			Name:          m.Name,
			ContextLength: contextLength,
			IsModerated:   m.IsModerated,
			PerMTok:       pricing.Derive(m.Pricing).PerMTok,
		})
	}
	return records
}

func renderDiscover(w io.Writer, records []discoverRecord, output string) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCONTEXT\tPROMPT $/MTOK\tCOMPLETION $/MTOK\tNAME")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				r.ID, formatAny(r.ContextLength), formatPrice(r.PerMTok, "prompt"), formatPrice(r.PerMTok, "completion"), r.Name)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "\nTotal: %d models\n", len(records))
		return err
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", output)
	}
}

func formatPrice(p pricing.Prices, dim string) string {
	v, ok := p.Get(dim)
	if !ok {
		return "-"
	}
	return pricing.FormatFloat(v)
}

func formatAny(v any) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(v)
}
