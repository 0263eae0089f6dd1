// Package cite defines citation identifier types and their normal forms.
package cite

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Type classifies a citation identifier.
type Type string

const (
	// TypeArxiv is an arXiv preprint number, new (2007.12345) or old
	// (hep-ph/0612345) format.
	TypeArxiv Type = "arxiv"
	// TypeTexKey is an INSPIRE texkey (Author:2020abc).
	TypeTexKey Type = "texkey"
	// TypeDOI is a Digital Object Identifier.
	TypeDOI Type = "doi"
)

// DefaultPriority is the canonical-selection order used when the user does
// not override it. The original workflow prefers arXiv numbers because they
// are stable across the preprint and published versions of a paper.
var DefaultPriority = []Type{TypeArxiv, TypeTexKey, TypeDOI}

// ErrInvalidIdentifier indicates a token that matches no supported identifier
// grammar.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// Identifier is a single citation token with its classified type and
// normalized comparable form.
type Identifier struct {
	Raw        string `json:"raw"`
	Type       Type   `json:"type"`
	Normalized string `json:"normalized"`
}

var (
	arxivNewRE = regexp.MustCompile(`^\d{4}\.\d{4,5}(v\d+)?$`)
	arxivOldRE = regexp.MustCompile(`(?i)^[a-z.\-]+/[09]\d{6}(v\d+)?$`)
	texkeyRE   = regexp.MustCompile(`^[a-zA-Z\-]+:\d{4}[a-z]{2,3}$`)
	doiRE      = regexp.MustCompile(`^10\.[0-9.]{4,}/\S+$`)

	versionRE = regexp.MustCompile(`v\d+$`)
)

// ParseType returns the Type named by s, for flag parsing.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypeArxiv:
		return TypeArxiv, nil
	case TypeTexKey:
		return TypeTexKey, nil
	case TypeDOI:
		return TypeDOI, nil
	}
	return "", fmt.Errorf("unknown identifier type %q (valid: arxiv, texkey, doi)", s)
}

// PriorityFor returns DefaultPriority rotated so that preferred comes first.
// The remaining types keep their default relative order.
func PriorityFor(preferred Type) []Type {
	order := []Type{preferred}
	for _, t := range DefaultPriority {
		if t != preferred {
			order = append(order, t)
		}
	}
	return order
}

// Classify determines the identifier type of a raw token.
// Returns ErrInvalidIdentifier when the token matches no supported grammar.
func Classify(raw string) (Type, error) {
	s := stripDOIPrefix(strings.TrimSpace(raw))
	switch {
	case arxivNewRE.MatchString(stripArxivPrefix(s)), arxivOldRE.MatchString(stripArxivPrefix(s)):
		return TypeArxiv, nil
	case texkeyRE.MatchString(s):
		return TypeTexKey, nil
	case doiRE.MatchString(s):
		return TypeDOI, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, raw)
}

// Normalize canonicalizes a raw identifier of the given type into its stable
// comparable form. It is pure and deterministic; two textual variants of the
// same identifier normalize identically.
func Normalize(raw string, typ Type) (string, error) {
	s := strings.TrimSpace(raw)
	switch typ {
	case TypeArxiv:
		s = stripArxivPrefix(s)
		// Version suffixes do not distinguish works.
		s = versionRE.ReplaceAllString(s, "")
		if arxivNewRE.MatchString(s) {
			return s, nil
		}
		if arxivOldRE.MatchString(s) {
			// Old-format archive names are case-insensitive.
			return strings.ToLower(s), nil
		}
	case TypeTexKey:
		if texkeyRE.MatchString(s) {
			// Texkeys keep their case for display; comparisons go
			// through Fold because INSPIRE matches case-insensitively.
			return s, nil
		}
	case TypeDOI:
		s = stripDOIPrefix(s)
		if doiRE.MatchString(s) {
			return strings.ToLower(s), nil
		}
	}
	return "", fmt.Errorf("%w: %q is not a valid %s", ErrInvalidIdentifier, raw, typ)
}

// New classifies and normalizes a raw token in one step.
func New(raw string) (Identifier, error) {
	typ, err := Classify(raw)
	if err != nil {
		return Identifier{}, err
	}
	norm, err := Normalize(raw, typ)
	if err != nil {
		return Identifier{}, err
	}
	return Identifier{Raw: raw, Type: typ, Normalized: norm}, nil
}

// Fold maps a normalized identifier to its case-insensitive comparison
// form. Two identifiers denote the same value exactly when their folds are
// equal.
func Fold(normalized string) string {
	return strings.ToLower(normalized)
}

// stripArxivPrefix removes an "arXiv:" label from a token, any case.
func stripArxivPrefix(s string) string {
	if len(s) > 6 && strings.EqualFold(s[:6], "arxiv:") {
		return s[6:]
	}
	return s
}

// stripDOIPrefix removes resolver and scheme prefixes from a DOI string.
func stripDOIPrefix(s string) string {
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "doi.org/", "DOI:", "doi:"} {
		s = strings.TrimPrefix(s, prefix)
	}
	return s
}
