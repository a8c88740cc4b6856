package validate

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/laurenamos/sustainable-model-chooser/internal/catalog"
	"github.com/laurenamos/sustainable-model-chooser/internal/pricing"
	"github.com/laurenamos/sustainable-model-chooser/internal/reconcile"
)

// Severity classifies validation issues.
type Severity int

const (
	SeverityError   Severity = iota // Fails the validate command
	SeverityWarning                 // Reported but doesn't fail
)

// Issue represents a single validation problem.
type Issue struct {
	Severity Severity
	Entry    string
	Field    string
	Message  string
}

func (i Issue) String() string {
	sev := "ERROR"
	if i.Severity == SeverityWarning {
		sev = "WARN"
	}
	return fmt.Sprintf("[%s] %s: %s: %s", sev, i.Entry, i.Field, i.Message)
}

// Result holds all validation issues.
type Result struct {
	Issues []Issue
}

// HasErrors returns true if there are any blocking errors.
func (r *Result) HasErrors() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only error-severity issues.
func (r *Result) Errors() []Issue {
	var errs []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			errs = append(errs, i)
		}
	}
	return errs
}

// Warnings returns only warning-severity issues.
func (r *Result) Warnings() []Issue {
	var warns []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityWarning {
			warns = append(warns, i)
		}
	}
	return warns
}

func (r *Result) add(sev Severity, entry, field, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{sev, entry, field, fmt.Sprintf(format, args...)})
}

// ValidateDocument checks the "openrouter" blocks of every catalog entry.
// Document-level structure is already enforced by catalog.Load.
func ValidateDocument(doc *catalog.Document) *Result {
	r := &Result{}
	seen := make(map[string]string)

	for _, e := range doc.Entries() {
		label := e.Label()
		if !e.IsObject() {
			r.add(SeverityWarning, label, "", "entry is not an object and is never synced")
			continue
		}

		or := e.OpenRouter()
		if !or.Exists() || or.Type == gjson.Null {
			continue
		}
		if !or.IsObject() {
			r.add(SeverityError, label, catalog.OpenRouterKey, "expected an object, got %s", typeName(or))
			continue
		}

		id := or.Get(catalog.FieldID)
		switch {
		case !id.Exists():
			r.add(SeverityWarning, label, catalog.FieldID, "missing; entry is never synced")
		case id.Type != gjson.String || strings.TrimSpace(id.String()) == "":
			r.add(SeverityError, label, catalog.FieldID, "must be a non-empty string, got %s", id.Raw)
		default:
			if prev, dup := seen[id.String()]; dup {
				r.add(SeverityWarning, label, catalog.FieldID, "duplicate id %q also used by %s", id.String(), prev)
			} else {
				seen[id.String()] = label
			}
		}

		if msg := or.Get(catalog.FieldSyncError); msg.Exists() {
			r.add(SeverityWarning, label, catalog.FieldSyncError, "%s", msg.String())
		}

		if cl := or.Get(catalog.FieldContext); cl.Exists() && cl.Type != gjson.Null {
			if cl.Type != gjson.Number || cl.Float() < 0 {
				r.add(SeverityError, label, catalog.FieldContext, "expected a non-negative number or null, got %s", cl.Raw)
			}
		}

		if mod := or.Get(catalog.FieldModerated); mod.Exists() && mod.Type != gjson.Null && !mod.IsBool() {
			r.add(SeverityError, label, catalog.FieldModerated, "expected a boolean or null, got %s", mod.Raw)
		}

		perToken := checkPrices(r, label, or.Get(catalog.FieldPerToken), catalog.FieldPerToken)
		perMTok := checkPrices(r, label, or.Get(catalog.FieldPerMTok), catalog.FieldPerMTok)
		checkScale(r, label, perToken, perMTok)

		if ts := or.Get(catalog.FieldSyncedAt); ts.Exists() {
			if _, err := time.Parse(reconcile.TimeLayout, ts.String()); err != nil {
				r.add(SeverityWarning, label, catalog.FieldSyncedAt, "unexpected timestamp %q", ts.String())
			}
		}
	}

	if ts := doc.SyncedAt(); ts != "" {
		if _, err := time.Parse(reconcile.TimeLayout, ts); err != nil {
			r.add(SeverityWarning, "document", catalog.SyncedAtKey, "unexpected timestamp %q", ts)
		}
	}

	return r
}

// checkPrices reports non-numeric or negative price values and returns the
// valid ones by dimension.
func checkPrices(r *Result, label string, v gjson.Result, field string) map[string]float64 {
	if !v.Exists() {
		return nil
	}
	if !v.IsObject() {
		r.add(SeverityError, label, field, "expected an object, got %s", typeName(v))
		return nil
	}

	prices := make(map[string]float64)
	v.ForEach(func(k, p gjson.Result) bool {
		f := field + "." + k.String()
		switch {
		case p.Type != gjson.Number:
			r.add(SeverityError, label, f, "expected a number, got %s", p.Raw)
		case p.Float() < 0:
			r.add(SeverityError, label, f, "negative price %s", p.Raw)
		default:
			prices[k.String()] = p.Float()
		}
		return true
	})
	return prices
}

// checkScale warns when a per-MTok price is not the per-token price scaled
// by one million.
func checkScale(r *Result, label string, perToken, perMTok map[string]float64) {
	for dim, tok := range perToken {
		mtok, ok := perMTok[dim]
		if !ok {
			r.add(SeverityWarning, label, catalog.FieldPerMTok+"."+dim, "missing; per-token price is %s", pricing.FormatFloat(tok))
			continue
		}
		want := tok * pricing.TokensPerMillion
		if math.Abs(want-mtok) > 1e-9*math.Max(1, math.Abs(want)) {
			r.add(SeverityWarning, label, catalog.FieldPerMTok+"."+dim,
				"%s does not match per-token price %s", pricing.FormatFloat(mtok), pricing.FormatFloat(tok))
		}
	}
}

func typeName(v gjson.Result) string {
	switch {
	case v.IsObject():
		return "object"
	case v.IsArray():
		return "array"
	}
	switch v.Type {
	case gjson.String:
		return "string"
	case gjson.Number:
		return "number"
	case gjson.True, gjson.False:
		return "boolean"
	}
	return "null"
}

// FormatResult formats validation results for display.
func FormatResult(r *Result) string {
	if len(r.Issues) == 0 {
		return "Validation passed: no issues found."
	}

	var b strings.Builder
	errors := r.Errors()
	warnings := r.Warnings()

	if len(errors) > 0 {
		b.WriteString(fmt.Sprintf("Errors (%d):\n", len(errors)))
		for _, e := range errors {
			b.WriteString(fmt.Sprintf("  %s\n", e))
		}
	}

	if len(warnings) > 0 {
		b.WriteString(fmt.Sprintf("Warnings (%d):\n", len(warnings)))
		for _, w := range warnings {
			b.WriteString(fmt.Sprintf("  %s\n", w))
		}
	}

	return b.String()
}
