// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package checkrun

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/clippycheck/services/check/annotate"
)

const unknownVersion = "unknown"

// Title returns the one-line headline for a tally, e.g. "2 errors, 1 warning".
func Title(t annotate.Tally) string {
	var parts []string
	if t.Internal > 0 {
		parts = append(parts, plural(t.Internal, "internal compiler error", "internal compiler errors"))
	}
	if n := t.Errors - t.Internal; n > 0 {
		parts = append(parts, plural(n, "error", "errors"))
	}
	if t.Warnings > 0 {
		parts = append(parts, plural(t.Warnings, "warning", "warnings"))
	}
	if t.Notes > 0 {
		parts = append(parts, plural(t.Notes, "note", "notes"))
	}
	if len(parts) == 0 {
		return "No problems found"
	}
	return strings.Join(parts, ", ")
}

// pendingSummary is shown while the lint tool is still running.
func pendingSummary(v ToolVersions) string {
	var b strings.Builder
	b.WriteString("Clippy is running.\n\n")
	writeVersions(&b, v)
	return b.String()
}

// summaryInput is everything the final summary reports.
type summaryInput struct {
	Tally      annotate.Tally
	Unanchored int
	Filtered   int
	Versions   ToolVersions
}

// renderSummary builds the markdown summary of a finished run.
func renderSummary(in summaryInput) string {
	var b strings.Builder

	b.WriteString("## Results\n\n")
	b.WriteString("| Message level | Amount |\n")
	b.WriteString("| --- | ---: |\n")
	if in.Tally.Internal > 0 {
		fmt.Fprintf(&b, "| Internal compiler error | %d |\n", in.Tally.Internal)
	}
	fmt.Fprintf(&b, "| Error | %d |\n", in.Tally.Errors-in.Tally.Internal)
	fmt.Fprintf(&b, "| Warning | %d |\n", in.Tally.Warnings)
	fmt.Fprintf(&b, "| Note | %d |\n", in.Tally.Notes)

	if in.Unanchored > 0 || in.Filtered > 0 {
		b.WriteString("\n")
	}
	if in.Unanchored > 0 {
		fmt.Fprintf(&b, "%s without a location in this repository %s counted but not annotated.\n",
			plural(in.Unanchored, "diagnostic", "diagnostics"), wasWere(in.Unanchored))
	}
	if in.Filtered > 0 {
		fmt.Fprintf(&b, "%s outside the changed lines %s counted but not annotated.\n",
			plural(in.Filtered, "diagnostic", "diagnostics"), wasWere(in.Filtered))
	}

	b.WriteString("\n")
	writeVersions(&b, in.Versions)
	return b.String()
}

func writeVersions(b *strings.Builder, v ToolVersions) {
	b.WriteString("## Versions\n\n")
	b.WriteString("| Tool | Version |\n")
	b.WriteString("| --- | --- |\n")
	fmt.Fprintf(b, "| rustc | %s |\n", versionOrUnknown(v.Rustc))
	fmt.Fprintf(b, "| cargo | %s |\n", versionOrUnknown(v.Cargo))
	fmt.Fprintf(b, "| clippy | %s |\n", versionOrUnknown(v.Clippy))
}

func versionOrUnknown(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return unknownVersion
	}
	// Keep the table intact if a tool prints something odd.
	return strings.NewReplacer("|", "\\|", "\n", " ").Replace(v)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}

func wasWere(n int) string {
	if n == 1 {
		return "was"
	}
	return "were"
}
