package inspire

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/texkit/bibgen/internal/cite"
	"github.com/texkit/bibgen/internal/record"
)

var (
	entryStartRE = regexp.MustCompile(`@(\w+)\s*\{\s*([^,\s]+)\s*,`)
	// Field values in INSPIRE bibtex responses are double-quoted.
	eprintFieldRE = regexp.MustCompile(`(?im)^\s*eprint\s*=\s*["{]([^"}]+)["}]`)
	doiFieldRE    = regexp.MustCompile(`(?im)^\s*doi\s*=\s*["{]([^"}]+)["}]`)
)

// htmlUnescaper decodes the escapes INSPIRE leaves in bibtex output.
// The API emits both terminated and unterminated forms.
var htmlUnescaper = strings.NewReplacer(
	"&gt;", ">",
	"&lt;", "<",
	"&amp;", "&",
	"&gt", ">",
	"&lt", "<",
)

// ParseBibTeX parses a single-entry bibtex response into a Record.
// The record key is the entry's texkey when it parses as one, so that
// records for the same work fetched under different identifiers share a key.
func ParseBibTeX(data string) (*record.Record, error) {
	data = htmlUnescaper.Replace(strings.TrimSpace(data))

	matches := entryStartRE.FindAllStringSubmatchIndex(data, 2)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no bibtex entry in response", ErrInvalidResponse)
	}
	// The literature search endpoint may return more than one entry;
	// only the first is the lookup result.
	if len(matches) > 1 {
		data = strings.TrimRight(data[:matches[1][0]], "\n ")
	}
	m := matches[0]
	entryType := data[m[2]:m[3]]
	texkey := data[m[4]:m[5]]

	body := data[m[1]:]
	body = strings.TrimRight(body, "\n ")
	body = strings.TrimSuffix(body, "}")
	body = strings.TrimRight(body, "\n ")
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: empty bibtex entry", ErrInvalidResponse)
	}

	rec := &record.Record{
		EntryType: strings.ToLower(entryType),
		Body:      body,
		Source:    record.SourceResolver,
	}

	if norm, err := cite.Normalize(texkey, cite.TypeTexKey); err == nil {
		rec.Key = norm
		rec.SetAltID(cite.TypeTexKey, norm)
	}
	if f := eprintFieldRE.FindStringSubmatch(data); f != nil {
		if norm, err := cite.Normalize(f[1], cite.TypeArxiv); err == nil {
			rec.SetAltID(cite.TypeArxiv, norm)
			if rec.Key == "" {
				rec.Key = norm
			}
		}
	}
	if f := doiFieldRE.FindStringSubmatch(data); f != nil {
		if norm, err := cite.Normalize(f[1], cite.TypeDOI); err == nil {
			rec.SetAltID(cite.TypeDOI, norm)
			if rec.Key == "" {
				rec.Key = norm
			}
		}
	}

	if rec.Key == "" {
		// Entry key is neither a texkey nor backed by eprint/doi fields;
		// fall back to the raw key so the record is still usable.
		rec.Key = texkey
	}

	return rec, nil
}
