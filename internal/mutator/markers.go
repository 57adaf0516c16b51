// Package mutator applies an optimization profile as a sequence of named,
// backed-up, verified configuration mutations. Mutations run strictly
// sequentially: each one fully completes (backup, write, verify,
// reactivate) before the next begins, because later targets can depend on
// earlier ones (the swap file must exist before the mount table refers to
// it).
package mutator

import "strings"

// Markers delimit the single block this tool owns inside shared
// configuration files. Re-runs replace the block instead of appending a
// duplicate, so applying the same profile twice yields byte-identical
// file contents.
const (
	markerBegin = "# >>> ubuntu-tools managed block >>>"
	markerEnd   = "# <<< ubuntu-tools managed block <<<"
)

// stripManagedBlock removes any previously applied block, leaving
// unrelated content untouched.
func stripManagedBlock(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	inBlock := false
	for _, line := range lines {
		switch strings.TrimSpace(line) {
		case markerBegin:
			inBlock = true
		case markerEnd:
			inBlock = false
		default:
			if !inBlock {
				out = append(out, line)
			}
		}
	}
	return strings.Join(out, "\n")
}

// upsertManagedBlock replaces the tool's block with body, normalizing
// trailing whitespace so the operation is idempotent in content.
func upsertManagedBlock(content, body string) string {
	base := strings.TrimRight(stripManagedBlock(content), "\n")

	var b strings.Builder
	if base != "" {
		b.WriteString(base)
		b.WriteString("\n\n")
	}
	b.WriteString(markerBegin)
	b.WriteString("\n")
	b.WriteString(strings.TrimRight(body, "\n"))
	b.WriteString("\n")
	b.WriteString(markerEnd)
	b.WriteString("\n")
	return b.String()
}
