// Package bib maintains a BibTeX bibliography file as a keyed record store.
package bib

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/texkit/bibgen/internal/cite"
	"github.com/texkit/bibgen/internal/record"
)

// Entry is one bibliography entry, preserved verbatim between runs.
type Entry struct {
	Key       string
	EntryType string
	Raw       string // Full entry text, byte-for-byte as stored
	Eprint    string // Normalized arXiv number from the eprint field, if any
	DOI       string // Normalized DOI from the doi field, if any
	Source    record.Source
}

// File is an in-memory view of a bibliography file. Entries keep their
// on-disk order; new entries append. Flush rewrites the file atomically and
// only when something changed.
type File struct {
	path    string
	entries map[string]*Entry
	order   []string
	dirty   bool
}

var (
	entryStartRE     = regexp.MustCompile(`^@(\w+)\s*\{\s*([^,\s}]+)\s*,?`)
	entryStartLineRE = regexp.MustCompile(`@(\w+)\s*\{\s*[^,\s}]+\s*,`)
	eprintFieldRE = regexp.MustCompile(`(?i)^\s*eprint\s*=\s*["{]([^"}]+)["}]`)
	doiFieldRE    = regexp.MustCompile(`(?i)^\s*doi\s*=\s*["{]([^"}]+)["}]`)
)

// Load reads a bibliography file. A missing file yields an empty File; any
// other read error is fatal to the run.
func Load(path string) (*File, error) {
	f := &File{path: path, entries: make(map[string]*Entry)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	for _, e := range parseEntries(string(data)) {
		entry := e
		if _, dup := f.entries[entry.Key]; dup {
			continue // Keep the first of duplicate keys.
		}
		f.entries[entry.Key] = &entry
		f.order = append(f.order, entry.Key)
	}

	return f, nil
}

// NewEmpty returns an empty File that will be written to path. Used for
// full rebuilds where previously cached resolver entries are discarded.
func NewEmpty(path string) *File {
	return &File{path: path, entries: make(map[string]*Entry), dirty: true}
}

// Rebuild returns a fresh File at the same path for a full regeneration.
// Entries backed by the supplemental file are carried over (the
// supplemental version wins); resolver-sourced entries are dropped.
func (f *File) Rebuild(suppl *File) *File {
	out := NewEmpty(f.path)
	for _, key := range f.order {
		if e, ok := suppl.Get(key); ok {
			out.Put(*e)
		}
	}
	return out
}

// Path returns the file's target path.
func (f *File) Path() string {
	return f.path
}

// Has reports whether an entry with the given key exists.
func (f *File) Has(key string) bool {
	_, ok := f.entries[key]
	return ok
}

// Get returns the entry stored under key.
func (f *File) Get(key string) (*Entry, bool) {
	e, ok := f.entries[key]
	return e, ok
}

// Keys returns entry keys in file order.
func (f *File) Keys() []string {
	return append([]string(nil), f.order...)
}

// Len returns the number of entries.
func (f *File) Len() int {
	return len(f.order)
}

// Put stores an entry. An existing key has its text replaced in place;
// entries are never duplicated.
func (f *File) Put(e Entry) {
	if existing, ok := f.entries[e.Key]; ok {
		if existing.Raw == e.Raw {
			return
		}
		*existing = e
		f.dirty = true
		return
	}
	stored := e
	f.entries[e.Key] = &stored
	f.order = append(f.order, e.Key)
	f.dirty = true
}

// PutRecord stores a resolver record under the given entry key.
func (f *File) PutRecord(key string, rec *record.Record) {
	f.Put(Entry{
		Key:       key,
		EntryType: rec.EntryType,
		Raw:       fmt.Sprintf("@%s{%s,%s\n}\n", rec.EntryType, key, rec.Body),
		Eprint:    altOrEmpty(rec, cite.TypeArxiv),
		DOI:       altOrEmpty(rec, cite.TypeDOI),
		Source:    rec.Source,
	})
}

// Rekey renames an entry, rewriting its header line. When the new key is
// already present the old entry is dropped instead, so keys stay unique.
func (f *File) Rekey(oldKey, newKey string) {
	if oldKey == newKey {
		return
	}
	e, ok := f.entries[oldKey]
	if !ok {
		return
	}

	if f.Has(newKey) {
		f.remove(oldKey)
		return
	}

	e.Key = newKey
	e.Raw = entryStartLineRE.ReplaceAllString(e.Raw, "@${1}{"+newKey+",")
	delete(f.entries, oldKey)
	f.entries[newKey] = e
	for i, k := range f.order {
		if k == oldKey {
			f.order[i] = newKey
			break
		}
	}
	f.dirty = true
}

func (f *File) remove(key string) {
	if _, ok := f.entries[key]; !ok {
		return
	}
	delete(f.entries, key)
	for i, k := range f.order {
		if k == key {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	f.dirty = true
}

// Flush writes the file atomically: full content to a temp file in the same
// directory, then rename. On error the original file is untouched. A clean
// File writes nothing.
func (f *File) Flush() error {
	if !f.dirty {
		return nil
	}

	var b strings.Builder
	for i, key := range f.order {
		if i > 0 {
			b.WriteString("\n")
		}
		raw := f.entries[key].Raw
		b.WriteString(raw)
		if !strings.HasSuffix(raw, "\n") {
			b.WriteString("\n")
		}
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".bibgen-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}

	f.dirty = false
	return nil
}

// Replacements builds a citekey-to-arXiv replacement map from the file's
// eprint fields: every entry keyed by something other than its arXiv number
// maps to that number.
func (f *File) Replacements() map[string]string {
	repl := make(map[string]string)
	for key, e := range f.entries {
		if e.Eprint != "" && key != e.Eprint {
			repl[key] = e.Eprint
		}
	}
	return repl
}

// Record converts an entry into a resolved record, deriving alternate
// identifiers from the entry key and the eprint/doi fields.
func (e *Entry) Record() *record.Record {
	rec := &record.Record{
		Key:       e.Key,
		EntryType: e.EntryType,
		Body:      entryBody(e.Raw),
		Source:    e.Source,
	}
	if rec.Source == "" {
		rec.Source = record.SourceResolver
	}

	if id, err := cite.New(e.Key); err == nil {
		rec.Key = id.Normalized
		rec.SetAltID(id.Type, id.Normalized)
	}
	rec.SetAltID(cite.TypeArxiv, e.Eprint)
	rec.SetAltID(cite.TypeDOI, e.DOI)

	return rec
}

// entryBody returns everything between the header's trailing comma and the
// entry's closing brace.
func entryBody(raw string) string {
	open := strings.IndexByte(raw, '{')
	if open == -1 {
		return raw
	}
	comma := strings.IndexByte(raw[open:], ',')
	if comma == -1 {
		return raw
	}
	body := raw[open+comma+1:]
	body = strings.TrimRight(body, "\n ")
	body = strings.TrimSuffix(body, "}")
	return strings.TrimRight(body, "\n ")
}

// parseEntries splits bibliography text into entries by brace depth.
// Text outside entries (stray comments between them) is dropped.
func parseEntries(data string) []Entry {
	var entries []Entry

	lines := strings.SplitAfter(data, "\n")
	var current *Entry
	depth := 0

	for _, line := range lines {
		if current == nil {
			m := entryStartRE.FindStringSubmatch(strings.TrimSpace(line))
			if m == nil {
				continue
			}
			current = &Entry{
				Key:       m[2],
				EntryType: strings.ToLower(m[1]),
			}
			depth = 0
		}

		current.Raw += line
		if m := eprintFieldRE.FindStringSubmatch(line); m != nil {
			if norm, err := cite.Normalize(m[1], cite.TypeArxiv); err == nil {
				current.Eprint = norm
			}
		}
		if m := doiFieldRE.FindStringSubmatch(line); m != nil {
			if norm, err := cite.Normalize(m[1], cite.TypeDOI); err == nil {
				current.DOI = norm
			}
		}

		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth <= 0 {
			current.Raw = strings.TrimRight(current.Raw, "\n") + "\n"
			entries = append(entries, *current)
			current = nil
		}
	}

	// Unterminated trailing entry: keep what was read.
	if current != nil {
		entries = append(entries, *current)
	}

	return entries
}

func altOrEmpty(rec *record.Record, typ cite.Type) string {
	v, _ := rec.AltID(typ)
	return v
}
