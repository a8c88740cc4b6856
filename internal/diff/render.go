package diff

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	addColor    = color.New(color.FgGreen).SprintFunc()
	errColor    = color.New(color.FgRed).SprintFunc()
	headerColor = color.New(color.Bold).SprintFunc()
	dimColor    = color.New(color.Faint).SprintFunc()
)

// RenderDiffSummary renders a terminal summary of the changeset. Colors are
// disabled automatically when stdout is not a terminal.
func RenderDiffSummary(cs *ChangeSet) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", headerColor("Source:"), cs.Source)
	fmt.Fprintf(&b, "%d updated, %d recovered, %d unresolved (%d already), %d unchanged, %d skipped\n",
		len(cs.Updated), len(cs.Recovered), len(cs.NewlyUnresolved)+cs.StillUnresolved,
		cs.StillUnresolved, cs.Unchanged, cs.Skipped)

	if !cs.HasChanges() {
		b.WriteString(dimColor("No changes.") + "\n")
		return b.String()
	}

	writeGroup := func(title string, entries []EntryChange, mark func(a ...interface{}) string) {
		if len(entries) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s\n", headerColor(title))
		for _, ec := range entries {
			fmt.Fprintf(&b, "  %s %s (%s)\n", mark("~"), ec.Label, ec.ID)
			for _, c := range ec.Changes {
				fmt.Fprintf(&b, "      %s: %s -> %s\n", c.Field, formatValue(c.OldValue), formatValue(c.NewValue))
			}
		}
	}

	writeGroup("Updated", cs.Updated, addColor)
	writeGroup("Recovered", cs.Recovered, addColor)
	writeGroup("Unresolved", cs.NewlyUnresolved, errColor)

	return b.String()
}

// RenderPRBody renders the changeset as a markdown pull request body.
func RenderPRBody(cs *ChangeSet) string {
	var b strings.Builder

	b.WriteString("## OpenRouter sync\n\n")
	fmt.Fprintf(&b, "Source: %s\n\n", cs.Source)
	fmt.Fprintf(&b, "| Updated | Recovered | Unresolved | Unchanged | Skipped |\n")
	fmt.Fprintf(&b, "|---------|-----------|------------|-----------|---------|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d |\n\n",
		len(cs.Updated), len(cs.Recovered), len(cs.NewlyUnresolved)+cs.StillUnresolved, cs.Unchanged, cs.Skipped)

	writeTable := func(title string, entries []EntryChange) {
		if len(entries) == 0 {
			return
		}
		fmt.Fprintf(&b, "<details>\n<summary>%s (%d)</summary>\n\n", title, len(entries))
		b.WriteString("| Model | OpenRouter ID | Field | Old | New |\n")
		b.WriteString("|-------|---------------|-------|-----|-----|\n")
		for _, ec := range entries {
			for _, c := range ec.Changes {
				fmt.Fprintf(&b, "| %s | `%s` | `%s` | %s | %s |\n",
					escapeCell(ec.Label), ec.ID, c.Field,
					escapeCell(formatValue(c.OldValue)), escapeCell(formatValue(c.NewValue)))
			}
		}
		b.WriteString("\n</details>\n\n")
	}

	writeTable("Updated", cs.Updated)
	writeTable("Recovered", cs.Recovered)
	writeTable("Unresolved", cs.NewlyUnresolved)

	if cs.StillUnresolved > 0 {
		fmt.Fprintf(&b, "%d entries were already unresolved and are unchanged.\n", cs.StillUnresolved)
	}

	return b.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		return fmt.Sprintf("%q", x)
	default:
		return fmt.Sprint(x)
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
