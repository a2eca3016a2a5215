package ai

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// OptionTally is one row of a vote result as shown to the model.
type OptionTally struct {
	Content string
	Count   int64
}

// GuideInput is everything the guide prompt needs.
type GuideInput struct {
	Question string
	Category string
	Leading  string
	Tallies  []OptionTally
}

// GuidePrompt renders the prompt for a closed vote. The model is asked to
// start with a "TITLE:" line followed by a markdown body.
func GuidePrompt(in GuideInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Category: %s\n", in.Category)
	fmt.Fprintf(&b, "Question: %s\n", in.Question)
	b.WriteString("Results:\n")
	for _, t := range in.Tallies {
		fmt.Fprintf(&b, "- %s: %d\n", t.Content, t.Count)
	}
	fmt.Fprintf(&b, "Winning answer: %s\n\n", in.Leading)
	b.WriteString("Write a short guide for readers who want advice on this question, ")
	b.WriteString("centered on the winning answer.\n")
	b.WriteString("Format: first line \"TITLE: <title>\", then a blank line, then the guide in markdown.")
	return b.String()
}

// ParseGuide splits a model answer into title and body. A missing TITLE line
// falls back to the first non-empty line (heading markers stripped).
func ParseGuide(raw string, maxTitleRunes int) (title, body string, err error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i == len(lines) {
		return "", "", ErrEmptyResponse
	}
	first := strings.TrimSpace(lines[i])
	if len(first) >= 6 && strings.EqualFold(first[:6], "title:") {
		title = strings.TrimSpace(first[6:])
	} else {
		title = strings.TrimSpace(strings.TrimLeft(first, "#"))
	}
	title = strings.Trim(title, "\"*")
	body = strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
	if title == "" || body == "" {
		return "", "", ErrEmptyResponse
	}
	if maxTitleRunes > 0 && utf8.RuneCountInString(title) > maxTitleRunes {
		title = strings.TrimSpace(string([]rune(title)[:maxTitleRunes]))
	}
	return title, body, nil
}

// SimilarOptionsPrompt asks for n more answers to question that differ from
// existing.
func SimilarOptionsPrompt(question string, existing []string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Poll question: %s\n", question)
	if len(existing) > 0 {
		b.WriteString("Existing answers:\n")
		for _, e := range existing {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	fmt.Fprintf(&b, "Suggest %d additional short answers, one per line, without numbering.", n)
	return b.String()
}

var listMarkerRE = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s*`)

// ParseOptions extracts up to n distinct answers, skipping ones already in
// existing (case-insensitive). List markers and numbering are stripped.
func ParseOptions(raw string, existing []string, n int) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		seen[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	out := make([]string, 0, n)
	for _, line := range strings.Split(raw, "\n") {
		s := listMarkerRE.ReplaceAllString(strings.TrimSpace(line), "")
		s = strings.Trim(strings.TrimSpace(s), "\"")
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
		if len(out) == n {
			break
		}
	}
	return out
}
