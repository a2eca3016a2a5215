package search

import "testing"

func TestFlattenMarkdown(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"blank", "  \n\t", ""},
		{"guide heading and bullets", "# Best pizza topping\n\n- **Pineapple** won with 12 votes\n* `Mushroom` second", "Best pizza topping\nPineapple won with 12 votes\nMushroom second"},
		{"results table", "| option | votes |\n|:--|--:|\n| Pineapple | 12 |\n|  |  |", "option votes\nPineapple 12"},
		{"fences dropped, body kept", "```\nraw\n```", "raw"},
		{"quote", "> participants agreed", "participants agreed"},
		{"lone pipe is text", "|", "|"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := flattenMarkdown(tc.in); got != tc.want {
				t.Fatalf("flattenMarkdown(%q) = %q; want %q", tc.in, got, tc.want)
			}
		})
	}
}

func Test_tableFact_SkipsAlignmentRows(t *testing.T) {
	if got := tableFact("| :---: | --- |"); got != "" {
		t.Fatalf("alignment row = %q", got)
	}
	if got := tableFact("| a-b | c |"); got != "a-b c" {
		t.Fatalf("cell with dash = %q", got)
	}
}
