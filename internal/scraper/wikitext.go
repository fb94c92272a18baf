package scraper

import (
	"regexp"
	"strings"
)

var (
	infoboxStart = regexp.MustCompile(`(?i)\{\{\s*Infobox`)
	wikiLink     = regexp.MustCompile(`\[\[(?:[^|\]]*\|)?([^\]]*)\]\]`)
	wikiTemplate = regexp.MustCompile(`\{\{[^{}]*\}\}`)
	lineBreakTag = regexp.MustCompile(`(?i)<br\s*/?>`)
)

// ParseInfobox extracts the key/value fields of the first infobox template
// in a page's wikitext. It returns nil when the page has no infobox or the
// infobox carries no usable fields.
func ParseInfobox(wikitext string) map[string]any {
	loc := infoboxStart.FindStringIndex(wikitext)
	if loc == nil {
		return nil
	}
	body, ok := templateBody(wikitext[loc[0]:])
	if !ok {
		return nil
	}

	fields := make(map[string]any)
	for _, part := range splitTemplateFields(body) {
		key, value, found := strings.Cut(part, "=")
		if !found {
			// The first part is the template name; fields always carry "=".
			continue
		}
		key = strings.TrimSpace(key)
		value = cleanWikitextValue(value)
		if key != "" && value != "" {
			fields[key] = value
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

// templateBody returns the content between a template's opening "{{" and
// its matching "}}", tracking nested templates by brace depth.
func templateBody(s string) (string, bool) {
	if !strings.HasPrefix(s, "{{") {
		return "", false
	}
	depth := 0
	for i := 0; i+1 < len(s); i++ {
		switch {
		case s[i] == '{' && s[i+1] == '{':
			depth++
			i++
		case s[i] == '}' && s[i+1] == '}':
			depth--
			if depth == 0 {
				return s[2:i], true
			}
			i++
		}
	}
	return "", false
}

// splitTemplateFields splits a template body on "|" at the top level only:
// pipes inside nested templates and inside wiki links belong to those
// constructs, not to the field list.
func splitTemplateFields(body string) []string {
	var parts []string
	var braces, brackets int
	last := 0

	for i := 0; i < len(body); i++ {
		if i+1 < len(body) {
			switch {
			case body[i] == '{' && body[i+1] == '{':
				braces++
				i++
				continue
			case body[i] == '}' && body[i+1] == '}':
				braces--
				i++
				continue
			case body[i] == '[' && body[i+1] == '[':
				brackets++
				i++
				continue
			case body[i] == ']' && body[i+1] == ']':
				brackets--
				i++
				continue
			}
		}
		if body[i] == '|' && braces == 0 && brackets == 0 {
			parts = append(parts, body[last:i])
			last = i + 1
		}
	}
	return append(parts, body[last:])
}

// cleanWikitextValue reduces a field value to plain text: links keep their
// display text, nested templates are dropped, line breaks become commas.
func cleanWikitextValue(value string) string {
	value = wikiLink.ReplaceAllString(value, "$1")
	for wikiTemplate.MatchString(value) {
		value = wikiTemplate.ReplaceAllString(value, "")
	}
	value = lineBreakTag.ReplaceAllString(value, ", ")
	value = htmlTag.ReplaceAllString(value, "")
	value = strings.ReplaceAll(value, "'''", "")
	value = strings.ReplaceAll(value, "''", "")
	value = strings.TrimSpace(whitespace.ReplaceAllString(value, " "))
	return strings.Trim(value, ", ")
}
