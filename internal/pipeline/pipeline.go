// Package pipeline runs the extract, resolve, merge, rewrite workflow for
// one document.
package pipeline

import (
	"context"
	"sync"

	"github.com/texkit/bibgen/internal/bib"
	"github.com/texkit/bibgen/internal/cite"
	"github.com/texkit/bibgen/internal/inspire"
	"github.com/texkit/bibgen/internal/merge"
	"github.com/texkit/bibgen/internal/record"
	"github.com/texkit/bibgen/internal/rewrite"
)

// Resolver maps a normalized identifier to a bibliographic record.
// The production implementation is the INSPIRE client.
type Resolver interface {
	Resolve(ctx context.Context, id cite.Identifier) (*record.Record, error)
}

// Cache is a persistent record cache consulted before the Resolver.
type Cache interface {
	Lookup(normalized string) (*record.Record, error)
	Put(rec *record.Record) error
}

// Options configure one document pass.
type Options struct {
	// Priority is the canonical-type selection order.
	Priority []cite.Type

	// Overwrite forces re-resolution of every identifier present in the
	// document, bypassing cache reads (the cache is still written).
	Overwrite bool

	// Workers bounds concurrent resolver lookups.
	Workers int
}

const defaultWorkers = 4

// Failure is a per-identifier service error. It never aborts the run.
type Failure struct {
	Token string `json:"token"`
	Err   string `json:"error"`
}

// Report summarizes one run. Per-identifier failures are collected here and
// reported at the end rather than aborting early.
type Report struct {
	Cited      int                 `json:"cited"`
	Resolved   int                 `json:"resolved"`
	FromCache  int                 `json:"from_cache"`
	NewEntries int                 `json:"new_entries"`
	Rewrites   int                 `json:"rewrites"`
	NotFound   []string            `json:"not_found,omitempty"`
	Invalid    []cite.InvalidToken `json:"invalid,omitempty"`
	Failures   []Failure           `json:"failures,omitempty"`
	Conflicts  []merge.Conflict    `json:"conflicts,omitempty"`
	Unresolved []string            `json:"unresolved,omitempty"`
}

// outcome is the result of resolving one identifier.
type outcome struct {
	rec       *record.Record
	err       error
	fromCache bool
}

// Generate scans document text and fills the bibliography file with an
// entry per cited key, resolving through the cache first. In append mode
// keys already present are skipped entirely, so a second run over an
// unchanged document issues zero resolver calls and leaves the file clean.
func Generate(ctx context.Context, text string, bibFile, suppl *bib.File, cache Cache, resolver Resolver, opts Options) *Report {
	report := &Report{}
	scan := cite.Scan(text)
	report.Invalid = scan.Invalid

	// Distinct cited keys in document order. Entries are keyed by the
	// token as cited; resolution is shared per normalized identifier.
	type citedKey struct {
		raw string
		id  cite.Identifier
	}
	var keys []citedKey
	seenRaw := make(map[string]bool)
	for _, occ := range scan.Occurrences {
		if !seenRaw[occ.Raw] {
			seenRaw[occ.Raw] = true
			keys = append(keys, citedKey{raw: occ.Raw, id: occ.Identifier})
		}
	}
	report.Cited = len(keys) + len(invalidKeys(scan.Invalid))

	// Invalid tokens can still be backed by the supplemental file.
	for _, raw := range invalidKeys(scan.Invalid) {
		if bibFile.Has(raw) {
			continue
		}
		if e, ok := suppl.Get(raw); ok {
			bibFile.Put(*e)
			report.NewEntries++
		}
	}

	var toResolve []cite.Identifier
	seenNorm := make(map[string]bool)
	for _, k := range keys {
		if bibFile.Has(k.raw) {
			continue
		}
		if suppl.Has(k.raw) {
			continue
		}
		if !seenNorm[k.id.Normalized] {
			seenNorm[k.id.Normalized] = true
			toResolve = append(toResolve, k.id)
		}
	}

	results := resolveAll(ctx, toResolve, cache, resolver, opts)

	notFound := make(map[string]bool)
	failed := make(map[string]bool)
	for _, k := range keys {
		if bibFile.Has(k.raw) {
			report.Resolved++
			continue
		}
		if e, ok := suppl.Get(k.raw); ok {
			bibFile.Put(*e)
			report.Resolved++
			report.NewEntries++
			continue
		}

		out := results[k.id.Normalized]
		switch {
		case out.rec != nil:
			bibFile.PutRecord(k.raw, out.rec)
			report.Resolved++
			report.NewEntries++
			if out.fromCache {
				report.FromCache++
			}
		case inspire.IsNotFound(out.err):
			if !notFound[k.raw] {
				notFound[k.raw] = true
				report.NotFound = append(report.NotFound, k.raw)
			}
		case out.err != nil:
			if !failed[k.raw] {
				failed[k.raw] = true
				report.Failures = append(report.Failures, Failure{Token: k.raw, Err: out.err.Error()})
			}
		}
	}

	return report
}

// Canonicalize groups the document's identifiers by the work they resolve
// to, rewrites every citation to the group's canonical identifier, and
// re-keys bibliography entries to match. Returns the rewritten text; it
// equals the input when nothing needed changing.
func Canonicalize(ctx context.Context, text string, bibFile, suppl *bib.File, cache Cache, resolver Resolver, opts Options) (string, *Report) {
	report := &Report{}
	scan := cite.Scan(text)
	report.Invalid = scan.Invalid

	ids := scan.Keys()
	report.Cited = len(ids) + len(invalidKeys(scan.Invalid))

	// Records already on hand: the supplemental file first (never queried),
	// then the bibliography file.
	local := make(map[string]*record.Record)
	var toResolve []cite.Identifier
	for _, id := range ids {
		if rec := localRecord(id, bibFile, suppl); rec != nil {
			local[id.Normalized] = rec
			continue
		}
		toResolve = append(toResolve, id)
	}

	results := resolveAll(ctx, toResolve, cache, resolver, opts)

	merger := merge.New(opts.Priority)
	for _, id := range ids {
		if rec, ok := local[id.Normalized]; ok {
			merger.Add(id, rec)
			report.Resolved++
			continue
		}
		out := results[id.Normalized]
		switch {
		case out.rec != nil:
			merger.Add(id, out.rec)
			report.Resolved++
			if out.fromCache {
				report.FromCache++
			}
		case inspire.IsNotFound(out.err):
			merger.Add(id, nil)
			report.NotFound = append(report.NotFound, id.Raw)
		default:
			merger.Add(id, nil)
			if out.err != nil {
				report.Failures = append(report.Failures, Failure{Token: id.Raw, Err: out.err.Error()})
			}
		}
	}

	plan := merger.Plan(scan.Occurrences)
	report.Conflicts = plan.Conflicts
	report.Unresolved = plan.Unresolved
	report.Rewrites = len(plan.Replacements)

	// Keep the bibliography consistent with the rewritten document: entries
	// cited under a non-canonical key are re-keyed, and freshly resolved
	// works get an entry under their canonical key.
	for _, id := range ids {
		canonical, ok := plan.CanonicalFor(id.Normalized)
		if !ok {
			continue
		}
		if id.Raw != canonical && bibFile.Has(id.Raw) {
			bibFile.Rekey(id.Raw, canonical)
		}
	}
	for _, id := range toResolve {
		out := results[id.Normalized]
		canonical, ok := plan.CanonicalFor(id.Normalized)
		if out.rec == nil || !ok || bibFile.Has(canonical) {
			continue
		}
		bibFile.PutRecord(canonical, out.rec)
		report.NewEntries++
	}

	return rewrite.Apply(text, plan.Replacements), report
}

// localRecord finds a record for a cited key without touching the network.
func localRecord(id cite.Identifier, bibFile, suppl *bib.File) *record.Record {
	if e, ok := suppl.Get(id.Raw); ok {
		return e.Record()
	}
	if e, ok := bibFile.Get(id.Raw); ok {
		return e.Record()
	}
	return nil
}

// resolveAll looks up identifiers through the cache and resolver with a
// bounded worker pool. Lookups for distinct identifiers run in parallel;
// cache writes are serialized to preserve key uniqueness.
func resolveAll(ctx context.Context, ids []cite.Identifier, cache Cache, resolver Resolver, opts Options) map[string]outcome {
	results := make(map[string]outcome, len(ids))
	if len(ids) == 0 || resolver == nil {
		return results
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > len(ids) {
		workers = len(ids)
	}

	jobs := make(chan cite.Identifier)
	var mu sync.Mutex // guards results and cache writes
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				out := resolveOne(ctx, id, cache, resolver, opts.Overwrite, &mu)
				mu.Lock()
				results[id.Normalized] = out
				mu.Unlock()
			}
		}()
	}

	for _, id := range ids {
		jobs <- id
	}
	close(jobs)
	wg.Wait()

	return results
}

func resolveOne(ctx context.Context, id cite.Identifier, cache Cache, resolver Resolver, overwrite bool, mu *sync.Mutex) outcome {
	if cache != nil && !overwrite {
		if rec, err := cache.Lookup(id.Normalized); err == nil && rec != nil {
			return outcome{rec: rec, fromCache: true}
		}
	}

	rec, err := resolver.Resolve(ctx, id)
	if err != nil {
		return outcome{err: err}
	}

	if cache != nil {
		mu.Lock()
		_ = cache.Put(rec) // cache write failures are non-fatal
		mu.Unlock()
	}

	return outcome{rec: rec}
}

func invalidKeys(invalid []cite.InvalidToken) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, t := range invalid {
		if !seen[t.Raw] {
			seen[t.Raw] = true
			keys = append(keys, t.Raw)
		}
	}
	return keys
}
