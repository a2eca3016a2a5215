package search

import "strings"

var (
	inlineMarkers = strings.NewReplacer("**", "", "__", "", "`", "")
	separatorRune = strings.NewReplacer(":", "", "-", "", " ", "")
)

// flattenMarkdown reduces guide markdown to one plain fact per line so the
// index sees words, not markup. Table rows keep their cells, separator rows
// and fence markers vanish, and block and inline markers are stripped.
func flattenMarkdown(md string) string {
	facts := make([]string, 0, 16)
	for _, raw := range strings.Split(md, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		var fact string
		if isTableRow(line) {
			fact = tableFact(line)
		} else {
			fact = blockText(line)
		}
		if fact = strings.TrimSpace(inlineMarkers.Replace(fact)); fact != "" {
			facts = append(facts, fact)
		}
	}
	return strings.Join(facts, "\n")
}

func isTableRow(line string) bool {
	return len(line) > 1 && line[0] == '|' && line[len(line)-1] == '|'
}

// tableFact joins the non-empty cells of a row. Alignment rows yield "".
func tableFact(line string) string {
	var cells []string
	for _, c := range strings.Split(strings.Trim(line, "|"), "|") {
		if c = strings.TrimSpace(c); c != "" && separatorRune.Replace(c) != "" {
			cells = append(cells, c)
		}
	}
	return strings.Join(cells, " ")
}

// blockText drops heading, quote and list markers from a line.
func blockText(line string) string {
	line = strings.TrimSpace(strings.TrimLeft(line, "#>"))
	for _, bullet := range [...]string{"- ", "* ", "+ "} {
		if strings.HasPrefix(line, bullet) {
			return line[len(bullet):]
		}
	}
	return line
}
