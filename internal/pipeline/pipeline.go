package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/laurenamos/sustainable-model-chooser/internal/cache"
	"github.com/laurenamos/sustainable-model-chooser/internal/catalog"
	"github.com/laurenamos/sustainable-model-chooser/internal/config"
	"github.com/laurenamos/sustainable-model-chooser/internal/diff"
	"github.com/laurenamos/sustainable-model-chooser/internal/httpclient"
	"github.com/laurenamos/sustainable-model-chooser/internal/openrouter"
	"github.com/laurenamos/sustainable-model-chooser/internal/reconcile"
	"github.com/laurenamos/sustainable-model-chooser/internal/validate"
)

// ExitCode constants for CLI.
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitChanges = 2 // Changes detected (diff mode)
)

// Source provides the remote model index.
type Source interface {
	FetchIndex(ctx context.Context) (openrouter.Index, error)
	URL() string
}

// NewSource builds the OpenRouter client described by cfg.
func NewSource(cfg *config.Config) (*openrouter.Client, error) {
	opts := []httpclient.Option{
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithUserAgent(cfg.UserAgent),
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, httpclient.WithRateLimit(cfg.RateLimit))
	}
	if cfg.Revalidate && cfg.CacheDir != "" {
		fc, err := cache.New(cfg.CacheDir, cfg.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		opts = append(opts, httpclient.WithCache(fc))
	}
	return openrouter.New(cfg.SourceURL, httpclient.New(opts...)), nil
}

// Pipeline orchestrates the full sync workflow.
type Pipeline struct {
	cfg    *config.Config
	source Source
	now    func() time.Time
}

// New creates a new Pipeline.
func New(cfg *config.Config, source Source) *Pipeline {
	return &Pipeline{cfg: cfg, source: source, now: time.Now}
}

// WithClock replaces the time source used for sync timestamps.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// SyncResult holds the outcome of a sync.
type SyncResult struct {
	Path       string
	SyncedAt   string
	Merge      *reconcile.Result
	ChangeSet  *diff.ChangeSet
	Validation *validate.Result
	Written    bool
	PRNumber   int
	PRDraft    bool
}

// Sync loads the catalog, fetches the index, merges it and writes the
// catalog back. A failure before the write leaves the file untouched.
func (p *Pipeline) Sync(ctx context.Context) (*SyncResult, error) {
	doc, res, err := p.merge(ctx)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{
		Path:      doc.Path,
		SyncedAt:  reconcile.Timestamp(p.now()),
		Merge:     res,
		ChangeSet: diff.Compute(p.source.URL(), res, diff.DiffOptions{}),
	}
	if err := doc.SetSyncedAt(result.SyncedAt); err != nil {
		return nil, err
	}

	result.Validation = validate.ValidateDocument(doc)
	for _, issue := range result.Validation.Errors() {
		slog.Warn("catalog issue", "issue", issue.String())
	}

	slog.Info("merge complete",
		"updated", res.Updated,
		"unresolved", res.Unresolved,
		"skipped", res.Skipped,
		"changed", result.ChangeSet.TotalChanged())

	if p.cfg.DryRun {
		slog.Info("dry run, catalog not written", "path", doc.Path, "bytes", len(doc.Bytes()))
		return result, nil
	}

	if err := catalog.NewWriter(p.cfg.AtomicWrite).Write(doc); err != nil {
		return nil, err
	}
	result.Written = true
	slog.Debug("catalog written", "path", doc.Path)

	if p.cfg.PublishEnabled() {
		if !result.ChangeSet.HasChanges() {
			slog.Info("no changes detected, skipping pull request")
			return result, nil
		}
		result.PRDraft = assessRisk(result.ChangeSet)
		num, err := p.createPR(ctx, result.ChangeSet, result.PRDraft)
		if err != nil {
			return result, fmt.Errorf("creating PR: %w", err)
		}
		result.PRNumber = num
	}

	return result, nil
}

// Diff runs the merge in memory and reports what a sync would change.
func (p *Pipeline) Diff(ctx context.Context) (*diff.ChangeSet, error) {
	_, res, err := p.merge(ctx)
	if err != nil {
		return nil, err
	}
	return diff.Compute(p.source.URL(), res, diff.DiffOptions{}), nil
}

// merge loads the catalog before touching the network so a missing or
// malformed document fails fast.
func (p *Pipeline) merge(ctx context.Context) (*catalog.Document, *reconcile.Result, error) {
	doc, err := catalog.Load(p.cfg.CatalogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading catalog: %w", err)
	}
	slog.Info("catalog loaded", "path", doc.Path, "entries", doc.Len())

	idx, err := p.source.FetchIndex(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching OpenRouter index: %w", err)
	}

	res, err := reconcile.Merge(doc, idx, reconcile.Options{Source: p.source.URL(), Now: p.now})
	if err != nil {
		return nil, nil, err
	}
	return doc, res, nil
}

// assessRisk reports whether a pull request should be opened as a draft.
func assessRisk(cs *diff.ChangeSet) bool {
	// Changed entries > 25 → draft PR
	if cs.TotalChanged() > 25 {
		return true
	}

	// Newly unresolved ids > 3 → draft PR
	if len(cs.NewlyUnresolved) > 3 {
		return true
	}

	// Check for large price deltas
	for _, u := range cs.Updated {
		for _, c := range u.Changes {
			if !isPriceField(c.Field) {
				continue
			}
			oldVal, okOld := c.OldValue.(float64)
			newVal, okNew := c.NewValue.(float64)
			if okOld && okNew && oldVal > 0 {
				delta := (newVal - oldVal) / oldVal
				if delta > 0.35 || delta < -0.35 {
					return true
				}
			}
		}
	}

	return false
}

func isPriceField(field string) bool {
	return strings.HasPrefix(field, catalog.FieldPerMTok+".")
}
