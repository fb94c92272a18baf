package scraper

import (
	"regexp"
	"strings"

	"cyberwiki/internal/core"
)

var (
	subPagesPrefix = regexp.MustCompile(`^Sub-Pages:[A-Za-z0-9]+\s*`)
	expandNotice   = regexp.MustCompile(`This section requires expanding\. Click here to add more\.\x{1F4DD}?`)
	cleanupNotice  = regexp.MustCompile(`This article requires cleanup\.`)
	htmlTag        = regexp.MustCompile(`<[^>]+>`)
	whitespace     = regexp.MustCompile(`\s+`)
	sectionHeading = regexp.MustCompile(`(?m)^={2,6}\s*(.+?)\s*=+[ \t]*$`)
)

// CleanText strips wiki service notices, HTML tags, and duplicated
// sentences from extracted page text.
func CleanText(text string) string {
	if text == "" {
		return text
	}

	text = subPagesPrefix.ReplaceAllString(text, "")
	text = expandNotice.ReplaceAllString(text, "")
	text = cleanupNotice.ReplaceAllString(text, "")
	text = htmlTag.ReplaceAllString(text, "")
	text = whitespace.ReplaceAllString(text, " ")

	// Extracts often repeat the lead sentence inside section text.
	sentences := strings.Split(text, ". ")
	unique := sentences[:0]
	for _, sentence := range sentences {
		dup := false
		for _, seen := range unique {
			if strings.EqualFold(sentence, seen) {
				dup = true
				break
			}
		}
		if !dup {
			unique = append(unique, sentence)
		}
	}

	return strings.TrimSpace(strings.Join(unique, ". "))
}

// SplitSections divides a wiki-format plain text extract (exsectionformat=
// wiki, headings rendered as "== Title ==") into the lead text and the
// titled sections after it. Heading depth is flattened; sections with no
// content after cleanup are dropped.
func SplitSections(text string) (string, []core.Section) {
	sections := []core.Section{}

	headings := sectionHeading.FindAllStringSubmatchIndex(text, -1)
	if len(headings) == 0 {
		return text, sections
	}

	intro := text[:headings[0][0]]
	for i, h := range headings {
		end := len(text)
		if i+1 < len(headings) {
			end = headings[i+1][0]
		}
		title := text[h[2]:h[3]]
		content := CleanText(text[h[1]:end])
		if title == "" || content == "" {
			continue
		}
		sections = append(sections, core.Section{Title: title, Content: content})
	}

	return intro, sections
}

// CapSentences truncates text to at most n sentences.
func CapSentences(text string, n int) string {
	sentences := strings.Split(text, ". ")
	if len(sentences) <= n {
		return text
	}
	return strings.Join(sentences[:n], ". ") + "."
}
