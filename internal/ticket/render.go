package ticket

import (
	"regexp"
	"strings"
)

const (
	// TokenPrefix is replaced with the ticket prefix in title formats and link templates.
	TokenPrefix = "%ticketPrefix%"
	// TokenNumber is replaced with the ticket number(s) in title formats and link templates.
	TokenNumber = "%ticketNumber%"
	// TokenTitle is replaced with the stripped original title in title formats.
	TokenTitle = "%title%"

	// NumberJoiner joins several ticket numbers inside a title.
	NumberJoiner = ", "
)

// space matches the same characters as \s in JavaScript patterns, Unicode spaces included.
const space = `[\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}]`

// StripReference removes a leading reference token such as "[PROJ-1, 2] " from title.
// Only a token at the very start is removed, case-insensitively; brackets, whitespace and a
// "/" or "-" separator between prefix and numbers are optional.
func StripReference(title string, numbers []string, prefix string) string {
	expr := `(?i)^\[?` + space + `*` + regexp.QuoteMeta(prefix) +
		space + `*/?-?` + space + `*` + regexp.QuoteMeta(strings.Join(numbers, NumberJoiner)) +
		space + `*\]?` + space + `*`
	re, err := regexp.Compile(expr)
	if err != nil {
		return title
	}
	loc := re.FindStringIndex(title)
	if loc == nil {
		return title
	}
	return title[loc[1]:]
}

// FormatTitle fills the first occurrence of each token in format.
func FormatTitle(format, prefix string, numbers []string, title string) string {
	out := strings.Replace(format, TokenPrefix, prefix, 1)
	out = strings.Replace(out, TokenNumber, strings.Join(numbers, NumberJoiner), 1)
	return strings.Replace(out, TokenTitle, title, 1)
}

// RenderLink fills a link template for a single ticket number.
func RenderLink(template, prefix, number string) string {
	out := strings.Replace(template, TokenNumber, number, 1)
	return strings.Replace(out, TokenPrefix, prefix, 1)
}

// LinkTemplateUsable reports whether template can produce a per-ticket link.
func LinkTemplateUsable(template string) bool {
	return strings.Contains(template, TokenNumber)
}
