//go:build integration

package openrouter

import (
	"context"
	"testing"
	"time"

	"github.com/laurenamos/sustainable-model-chooser/internal/httpclient"
	"github.com/laurenamos/sustainable-model-chooser/internal/pricing"
)

func TestOpenRouterAPIIntegration(t *testing.T) {
	c := New(DefaultURL, httpclient.New())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	idx, err := c.FetchIndex(ctx)
	if err != nil {
		t.Fatalf("FetchIndex failed: %v", err)
	}

	if len(idx) < 50 {
		t.Fatalf("expected a substantial model list, got %d", len(idx))
	}

	priced := 0
	for _, id := range idx.IDs() {
		m := idx[id]
		if m.ID != id {
			t.Errorf("index key %q holds model %q", id, m.ID)
		}
		d := pricing.Derive(m.Pricing)
		if _, ok := d.PerMTok.Get("prompt"); ok {
			priced++
		}
	}
	if priced == 0 {
		t.Error("expected at least one model with a numeric prompt price")
	}
}
