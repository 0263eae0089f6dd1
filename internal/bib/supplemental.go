package bib

import "github.com/texkit/bibgen/internal/record"

// LoadSupplemental reads the user-curated supplemental bibliography.
// Its entries are never re-queried from the resolver and survive full
// rebuilds of the main bibliography file.
func LoadSupplemental(path string) (*File, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	for _, e := range f.entries {
		e.Source = record.SourceSupplemental
	}
	return f, nil
}
