package realm

import (
	"fmt"
	"strings"
)

const (
	partDivider  = ":"
	tokenDivider = ","
	wildcard     = "*"
)

// WildcardPermission is a colon-delimited, comma-alternated permission
// such as "printer:query,print:lp7200". A granted permission implies a
// required one when every part either carries the wildcard token or
// contains all of the required part's tokens; a granted permission with
// fewer parts implies any longer required permission with the same
// prefix ("printer" implies "printer:print").
type WildcardPermission struct {
	parts []map[string]struct{}
}

// ParseWildcardPermission parses the textual form. Matching is
// case-insensitive; empty parts are rejected.
func ParseWildcardPermission(s string) (WildcardPermission, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return WildcardPermission{}, fmt.Errorf("empty permission")
	}
	var p WildcardPermission
	for _, part := range strings.Split(strings.ToLower(s), partDivider) {
		tokens := make(map[string]struct{})
		for _, tok := range strings.Split(part, tokenDivider) {
			tok = strings.TrimSpace(tok)
			if tok != "" {
				tokens[tok] = struct{}{}
			}
		}
		if len(tokens) == 0 {
			return WildcardPermission{}, fmt.Errorf("permission %q has an empty part", s)
		}
		p.parts = append(p.parts, tokens)
	}
	return p, nil
}

// Implies reports whether p (a granted permission) implies other (a
// required permission).
func (p WildcardPermission) Implies(other WildcardPermission) bool {
	for i, otherPart := range other.parts {
		// Granted ran out of parts: a shorter grant implies any longer
		// requirement with the same prefix.
		if i >= len(p.parts) {
			return true
		}
		part := p.parts[i]
		if _, ok := part[wildcard]; ok {
			continue
		}
		for tok := range otherPart {
			if _, ok := part[tok]; !ok {
				return false
			}
		}
	}
	// Extra granted parts must all be wildcards.
	for i := len(other.parts); i < len(p.parts); i++ {
		if _, ok := p.parts[i][wildcard]; !ok {
			return false
		}
	}
	return true
}

// Implies reports whether the granted permission string implies the
// required one. Unparseable input never grants anything.
func Implies(granted, required string) bool {
	g, err := ParseWildcardPermission(granted)
	if err != nil {
		return false
	}
	r, err := ParseWildcardPermission(required)
	if err != nil {
		return false
	}
	return g.Implies(r)
}
