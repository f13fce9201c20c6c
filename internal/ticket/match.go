// Package ticket extracts ticket-tracker references from pull request titles and branch names
// and renders the strings derived from them (titles and ticket links).
package ticket

import (
	"regexp"
	"strings"
)

const (
	// GroupPrefix is the named capture group holding the ticket prefix (project code).
	GroupPrefix = "ticketPrefix"
	// GroupNumber is the named capture group holding one or more ticket numbers.
	GroupNumber = "ticketNumber"
)

// Match holds the named captures of a single pattern match.
type Match struct {
	// Prefix is the ticketPrefix capture, empty when the group is absent or did not participate.
	Prefix string
	// Number is the ticketNumber capture, empty when the group is absent or did not participate.
	Number string
	// Raw is the whole matched substring.
	Raw string
}

// MatchText runs re against text once and reports the named captures of the first match.
// Patterns without the named groups still match; their captures are simply empty.
func MatchText(re *regexp.Regexp, text string) (Match, bool) {
	if re == nil {
		return Match{}, false
	}
	idx := re.FindStringSubmatchIndex(text)
	if idx == nil {
		return Match{}, false
	}

	m := Match{Raw: text[idx[0]:idx[1]]}
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		start, end := idx[2*i], idx[2*i+1]
		if start < 0 {
			continue
		}
		value := text[start:end]
		switch name {
		case GroupPrefix:
			if m.Prefix == "" {
				m.Prefix = value
			}
		case GroupNumber:
			if m.Number == "" {
				m.Number = value
			}
		}
	}
	return m, true
}

// Reference is a structured pointer to a ticket: a prefix and one or more numeric IDs.
type Reference struct {
	// Prefix is the project code, e.g. "PROJ".
	Prefix string
	// Numbers keeps the parsed IDs in source order, duplicates included.
	Numbers []string
}

// ParseMatch normalizes a match into a Reference. It never fails: missing parts are left empty.
func ParseMatch(m Match) Reference {
	ref := Reference{Prefix: strings.TrimSpace(m.Prefix)}
	if m.Number == "" {
		return ref
	}
	for _, part := range strings.Split(m.Number, "-") {
		ref.Numbers = append(ref.Numbers, strings.TrimSpace(part))
	}
	return ref
}

// HasNumbers reports whether at least one non-empty ticket number was parsed.
func (r Reference) HasNumbers() bool {
	for _, n := range r.Numbers {
		if n != "" {
			return true
		}
	}
	return false
}

// Missing lists the parts absent from the reference ("number", "prefix").
func (r Reference) Missing() []string {
	var out []string
	if !r.HasNumbers() {
		out = append(out, "number")
	}
	if r.Prefix == "" {
		out = append(out, "prefix")
	}
	return out
}

// JoinedNumbers renders the numbers the way titles carry them: "1, 2, 3".
func (r Reference) JoinedNumbers() string {
	return strings.Join(r.Numbers, NumberJoiner)
}
