// Package merge groups citation identifiers that refer to the same work and
// chooses one canonical identifier per work.
package merge

import (
	"sort"

	"github.com/texkit/bibgen/internal/cite"
	"github.com/texkit/bibgen/internal/record"
)

// Replacement rewrites the byte span [Start, End) of the source document.
// An empty Text with Delete set removes a duplicate key from a \cite list.
type Replacement struct {
	Start  int
	End    int
	Text   string
	List   int
	Delete bool
}

// Conflict reports the same work cited under two or more distinct
// identifier values. It is informational, not an error.
type Conflict struct {
	Tokens    []string `json:"tokens"`    // Raw tokens involved, in document order
	Canonical string   `json:"canonical"` // Replacement chosen for all of them
}

// Plan is the merger's output for one document pass.
type Plan struct {
	// Replacements, ordered by Start, covering only occurrences whose text
	// actually changes. An already canonical document yields none.
	Replacements []Replacement

	// Conflicts detected during grouping.
	Conflicts []Conflict

	// Unresolved lists raw tokens with no record from any source.
	Unresolved []string

	// Canonical maps each group's member keys (folded) to the chosen
	// identifier. Use CanonicalFor for lookups.
	Canonical map[string]string
}

// CanonicalFor returns the canonical identifier chosen for a normalized
// identifier's group, if its group has a record from any source.
func (p Plan) CanonicalFor(normalized string) (string, bool) {
	v, ok := p.Canonical[cite.Fold(normalized)]
	return v, ok
}

// Merger accumulates resolved identifiers and computes canonical groupings.
// Grouping is transitive: identifiers are joined through shared record keys
// and through records' alternate-identifier sets.
type Merger struct {
	priority []cite.Type
	uf       *unionFind

	// records by normalized identifier, insertion order preserved so
	// same-type alternate collisions resolve first-encountered-wins.
	records map[string]*record.Record
	order   []string
}

// New creates a Merger with the given canonical-type priority order.
// A nil priority falls back to cite.DefaultPriority.
func New(priority []cite.Type) *Merger {
	if len(priority) == 0 {
		priority = cite.DefaultPriority
	}
	return &Merger{
		priority: priority,
		uf:       newUnionFind(),
		records:  make(map[string]*record.Record),
	}
}

// Add registers an identifier found in the document together with its
// resolved record. A nil record marks the identifier as unresolved; it still
// participates in grouping through other members' alternate sets.
func (m *Merger) Add(id cite.Identifier, rec *record.Record) {
	key := cite.Fold(id.Normalized)
	m.uf.add(key)
	if _, seen := m.records[key]; !seen {
		m.order = append(m.order, key)
	}
	if rec == nil {
		if m.records[key] == nil {
			m.records[key] = nil
		}
		return
	}

	m.records[key] = rec
	recKey := cite.Fold(rec.Key)
	m.uf.add(recKey)
	m.uf.union(key, recKey)
	for _, alt := range rec.AltIDs {
		m.uf.add(cite.Fold(alt))
		m.uf.union(key, cite.Fold(alt))
	}
}

// Plan computes the rewrite plan for the scanned occurrences. It is
// deterministic and independent of the order identifiers were added:
// canonical selection depends only on the merged alternate sets, with ties
// broken by document order.
func (m *Merger) Plan(occurrences []cite.Occurrence) Plan {
	plan := Plan{Canonical: make(map[string]string)}

	groups := m.groups()

	for _, members := range groups {
		merged := m.mergedAlts(members)
		canonical := canonicalFor(merged, m.priority)
		if canonical == "" {
			continue // No record from any source; handled below.
		}
		for _, key := range members {
			plan.Canonical[key] = canonical
		}
	}

	// Conflicts: a group with two or more distinct normalized keys present
	// in the text was cited under different identifier values.
	plan.Conflicts = m.conflicts(groups, occurrences, plan.Canonical)

	// Replacements and unresolved reporting follow document order.
	seenUnresolved := make(map[string]bool)
	seenInList := make(map[listKey]bool)
	for _, occ := range occurrences {
		canonical, ok := plan.Canonical[cite.Fold(occ.Normalized)]
		if !ok {
			if !seenUnresolved[occ.Raw] {
				seenUnresolved[occ.Raw] = true
				plan.Unresolved = append(plan.Unresolved, occ.Raw)
			}
			continue
		}

		lk := listKey{list: occ.List, canonical: canonical}
		if seenInList[lk] {
			// Two keys in one \cite list canonicalize to the same
			// identifier; the later one is dropped.
			plan.Replacements = append(plan.Replacements, Replacement{
				Start:  occ.Start,
				End:    occ.End,
				List:   occ.List,
				Delete: true,
			})
			continue
		}
		seenInList[lk] = true

		if occ.Raw != canonical {
			plan.Replacements = append(plan.Replacements, Replacement{
				Start: occ.Start,
				End:   occ.End,
				Text:  canonical,
				List:  occ.List,
			})
		}
	}

	sort.Slice(plan.Replacements, func(i, j int) bool {
		return plan.Replacements[i].Start < plan.Replacements[j].Start
	})

	return plan
}

type listKey struct {
	list      int
	canonical string
}

// groups returns the union-find components restricted to identifiers that
// were added from the document, members in document order.
func (m *Merger) groups() [][]string {
	byRoot := make(map[string][]string)
	var roots []string
	for _, key := range m.order {
		root := m.uf.find(key)
		if _, ok := byRoot[root]; !ok {
			roots = append(roots, root)
		}
		byRoot[root] = append(byRoot[root], key)
	}

	groups := make([][]string, 0, len(roots))
	for _, root := range roots {
		groups = append(groups, byRoot[root])
	}
	return groups
}

// mergedAlts merges the alternate-identifier sets of all records in a group.
// The first value encountered per type wins; later same-type values from
// other sources are ignored.
func (m *Merger) mergedAlts(members []string) map[cite.Type]string {
	merged := make(map[cite.Type]string)
	for _, key := range members {
		rec := m.records[key]
		if rec == nil {
			continue
		}
		for _, typ := range []cite.Type{cite.TypeArxiv, cite.TypeTexKey, cite.TypeDOI} {
			if alt, ok := rec.AltIDs[typ]; ok {
				if _, exists := merged[typ]; !exists {
					merged[typ] = alt
				}
			}
		}
	}
	return merged
}

// canonicalFor walks the priority order and returns the first available
// identifier, or "" when the group has no record at all.
func canonicalFor(merged map[cite.Type]string, priority []cite.Type) string {
	for _, typ := range priority {
		if v, ok := merged[typ]; ok {
			return v
		}
	}
	return ""
}

// conflicts emits one event per group cited under multiple distinct keys.
// Two spellings normalizing to the same key are not a conflict.
func (m *Merger) conflicts(groups [][]string, occurrences []cite.Occurrence, canonical map[string]string) []Conflict {
	var out []Conflict
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		chosen, ok := canonical[members[0]]
		if !ok {
			continue
		}

		memberSet := make(map[string]bool, len(members))
		for _, key := range members {
			memberSet[key] = true
		}

		var tokens []string
		seen := make(map[string]bool)
		for _, occ := range occurrences {
			if memberSet[cite.Fold(occ.Normalized)] && !seen[occ.Raw] {
				seen[occ.Raw] = true
				tokens = append(tokens, occ.Raw)
			}
		}
		out = append(out, Conflict{Tokens: tokens, Canonical: chosen})
	}
	return out
}
