// Package record defines the resolved bibliographic entry type.
package record

import (
	"github.com/texkit/bibgen/internal/cite"
)

// Source tracks where a record came from.
type Source string

const (
	// SourceResolver marks records fetched from the lookup service.
	SourceResolver Source = "resolver"
	// SourceSupplemental marks records read from the user-curated
	// supplemental bib file. These are never overwritten by resolver output.
	SourceSupplemental Source = "supplemental"
)

// Record is a resolved bibliographic entry.
type Record struct {
	// Key is the canonical identifier the entry is stored under.
	Key string `json:"key"`

	// AltIDs maps each identifier type to the normalized value the
	// resolver reported, at most one per type. First encountered wins
	// when a source reports duplicates of the same type.
	AltIDs map[cite.Type]string `json:"alt_ids,omitempty"`

	// EntryType is the BibTeX entry type (article, inproceedings, ...).
	EntryType string `json:"entry_type"`

	// Body is the BibTeX field block, everything between the key's
	// trailing comma and the entry's closing brace.
	Body string `json:"body"`

	Source Source `json:"source"`
}

// SetAltID records an alternate identifier, keeping the first value seen
// for each type.
func (r *Record) SetAltID(typ cite.Type, normalized string) {
	if normalized == "" {
		return
	}
	if r.AltIDs == nil {
		r.AltIDs = make(map[cite.Type]string)
	}
	if _, ok := r.AltIDs[typ]; !ok {
		r.AltIDs[typ] = normalized
	}
}

// AltID returns the normalized identifier of the given type, if known.
func (r *Record) AltID(typ cite.Type) (string, bool) {
	v, ok := r.AltIDs[typ]
	return v, ok
}

// CanonicalID picks the record's identifier for the first type in priority
// order that has a value, falling through to later types. Returns the
// record key when no alternate identifier is known at all.
func (r *Record) CanonicalID(priority []cite.Type) string {
	for _, typ := range priority {
		if v, ok := r.AltIDs[typ]; ok {
			return v
		}
	}
	return r.Key
}
