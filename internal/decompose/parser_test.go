package decompose

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "plain list",
			raw:  "1. Gather data\n2. Analyze it\n3. Report",
			want: []string{"Gather data", "Analyze it", "Report"},
		},
		{
			name: "preamble and indentation",
			raw:  "Here is the plan:\n\n  1.  Compute the sum\n\t2.Check the result  \nThat's all.",
			want: []string{"Compute the sum", "Check the result"},
		},
		{
			name: "crlf line endings",
			raw:  "1. a\r\n2. b\r\n",
			want: []string{"a", "b"},
		},
		{
			name: "non sequential numbers keep order",
			raw:  "3. third\n1. first",
			want: []string{"third", "first"},
		},
		{
			name: "nested bullets are ignored",
			raw:  "1. Stage\n   - detail\n   * more\n2) not a match\n2. Next",
			want: []string{"Stage", "Next"},
		},
		{
			name: "marker without text is not an item",
			raw:  "1.\n2. real",
			want: []string{"real"},
		},
		{name: "empty", raw: "", want: nil},
		{name: "no numbered lines", raw: "No further decomposition needed.", want: nil},
		{name: "refusal", raw: "I cannot help with that.\n- maybe this", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.raw))
		})
	}
}

func TestParse_LengthMatchesNumberedLines(t *testing.T) {
	for n := 1; n <= 12; n++ {
		var lines []string
		var want []string
		for i := 1; i <= n; i++ {
			item := fmt.Sprintf("item number %d", i)
			lines = append(lines, fmt.Sprintf("%d. %s", i, item), "filler text between items")
			want = append(want, item)
		}
		got := Parse(strings.Join(lines, "\n"))
		assert.Len(t, got, n)
		assert.Equal(t, want, got)
	}
}
