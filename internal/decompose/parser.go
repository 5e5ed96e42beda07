// Package decompose turns free-form model output into ordered subtask lists
// and builds the prompts used to decompose, solve and synthesize a task.
package decompose

import (
	"regexp"
	"strings"
)

// itemPattern matches one numbered list line: optional indentation, an
// integer, a dot, optional spacing and then the item text.
var itemPattern = regexp.MustCompile(`^\s*\d+\.\s*(\S.*)$`)

// Parse extracts the items of a numbered list from raw, in order, with the
// list markers stripped. Lines that are not numbered items are ignored. An
// empty result means the model did not produce a usable decomposition.
func Parse(raw string) []string {
	var items []string
	for _, line := range strings.Split(raw, "\n") {
		m := itemPattern.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		items = append(items, strings.TrimSpace(m[1]))
	}
	return items
}
