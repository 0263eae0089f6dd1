package merge

import (
	"reflect"
	"testing"

	"github.com/texkit/bibgen/internal/cite"
	"github.com/texkit/bibgen/internal/record"
)

func id(t *testing.T, raw string) cite.Identifier {
	t.Helper()
	parsed, err := cite.New(raw)
	if err != nil {
		t.Fatalf("cite.New(%q): %v", raw, err)
	}
	return parsed
}

// rec builds a record whose alternates link the given identifiers.
func rec(key string, alts ...string) *record.Record {
	r := &record.Record{Key: key, EntryType: "article", Source: record.SourceResolver}
	for _, alt := range alts {
		parsed, err := cite.New(alt)
		if err != nil {
			panic(err)
		}
		r.SetAltID(parsed.Type, parsed.Normalized)
	}
	return r
}

func TestPlan_GroupsThroughSharedRecord(t *testing.T) {
	// The texkey and the arXiv number resolve to the same record, so both
	// occurrences rewrite to the arXiv number under the default priority.
	text := `\cite{Cox:2020lvq} and \cite{2007.12345}`
	scan := cite.Scan(text)

	m := New(nil)
	shared := rec("Cox:2020lvq", "Cox:2020lvq", "2007.12345")
	m.Add(id(t, "Cox:2020lvq"), shared)
	m.Add(id(t, "2007.12345"), shared)

	plan := m.Plan(scan.Occurrences)

	if got, ok := plan.CanonicalFor("Cox:2020lvq"); !ok || got != "2007.12345" {
		t.Errorf("CanonicalFor(Cox:2020lvq) = %q, %v", got, ok)
	}
	if len(plan.Replacements) != 1 {
		t.Fatalf("Replacements = %v, want exactly the texkey rewrite", plan.Replacements)
	}
	if plan.Replacements[0].Text != "2007.12345" {
		t.Errorf("replacement text = %q", plan.Replacements[0].Text)
	}

	if len(plan.Conflicts) != 1 {
		t.Fatalf("Conflicts = %v, want 1", plan.Conflicts)
	}
	want := Conflict{Tokens: []string{"Cox:2020lvq", "2007.12345"}, Canonical: "2007.12345"}
	if !reflect.DeepEqual(plan.Conflicts[0], want) {
		t.Errorf("conflict = %+v, want %+v", plan.Conflicts[0], want)
	}
}

func TestPlan_TransitiveGrouping(t *testing.T) {
	// A links to B, B links to C. All three must land in one group even
	// though A and C share no record directly.
	text := `\cite{Cox:2020lvq} \cite{2007.12345} \cite{10.1103/PhysRevD.101.075004}`
	scan := cite.Scan(text)

	m := New(nil)
	m.Add(id(t, "Cox:2020lvq"), rec("Cox:2020lvq", "Cox:2020lvq", "2007.12345"))
	m.Add(id(t, "2007.12345"), rec("Cox:2020lvq", "2007.12345", "10.1103/PhysRevD.101.075004"))
	m.Add(id(t, "10.1103/PhysRevD.101.075004"), nil)

	plan := m.Plan(scan.Occurrences)

	for _, key := range []string{"Cox:2020lvq", "2007.12345", "10.1103/physrevd.101.075004"} {
		if got, ok := plan.CanonicalFor(key); !ok || got != "2007.12345" {
			t.Errorf("CanonicalFor(%s) = %q, %v, want 2007.12345", key, got, ok)
		}
	}
	if len(plan.Unresolved) != 0 {
		t.Errorf("Unresolved = %v, want none (grouped member has a record)", plan.Unresolved)
	}
}

func TestPlan_OrderIndependent(t *testing.T) {
	text := `\cite{Cox:2020lvq} and \cite{2007.12345}`
	scan := cite.Scan(text)

	a := New(nil)
	a.Add(id(t, "Cox:2020lvq"), rec("Cox:2020lvq", "Cox:2020lvq", "2007.12345"))
	a.Add(id(t, "2007.12345"), rec("Cox:2020lvq", "Cox:2020lvq", "2007.12345"))

	b := New(nil)
	b.Add(id(t, "2007.12345"), rec("Cox:2020lvq", "Cox:2020lvq", "2007.12345"))
	b.Add(id(t, "Cox:2020lvq"), rec("Cox:2020lvq", "Cox:2020lvq", "2007.12345"))

	planA := a.Plan(scan.Occurrences)
	planB := b.Plan(scan.Occurrences)

	if !reflect.DeepEqual(planA.Replacements, planB.Replacements) {
		t.Errorf("plans differ by insertion order:\n%v\n%v", planA.Replacements, planB.Replacements)
	}
	if !reflect.DeepEqual(planA.Canonical, planB.Canonical) {
		t.Errorf("canonical maps differ:\n%v\n%v", planA.Canonical, planB.Canonical)
	}
}

func TestPlan_PriorityOverride(t *testing.T) {
	text := `\cite{2007.12345}`
	scan := cite.Scan(text)

	m := New([]cite.Type{cite.TypeTexKey, cite.TypeArxiv, cite.TypeDOI})
	m.Add(id(t, "2007.12345"), rec("Cox:2020lvq", "Cox:2020lvq", "2007.12345"))

	plan := m.Plan(scan.Occurrences)

	if len(plan.Replacements) != 1 {
		t.Fatalf("Replacements = %v, want 1", plan.Replacements)
	}
	if plan.Replacements[0].Text != "Cox:2020lvq" {
		t.Errorf("replacement text = %q, want Cox:2020lvq", plan.Replacements[0].Text)
	}
}

func TestPlan_PriorityFallthrough(t *testing.T) {
	// No arXiv alternate anywhere in the group: the default priority falls
	// through to the texkey.
	text := `\cite{10.1000/xyz123}`
	scan := cite.Scan(text)

	m := New(nil)
	m.Add(id(t, "10.1000/xyz123"), rec("Smith:2019abc", "Smith:2019abc", "10.1000/xyz123"))

	plan := m.Plan(scan.Occurrences)

	if len(plan.Replacements) != 1 || plan.Replacements[0].Text != "Smith:2019abc" {
		t.Errorf("Replacements = %v, want rewrite to Smith:2019abc", plan.Replacements)
	}
}

func TestPlan_AlreadyCanonical(t *testing.T) {
	text := `\cite{2007.12345}`
	scan := cite.Scan(text)

	m := New(nil)
	m.Add(id(t, "2007.12345"), rec("Cox:2020lvq", "Cox:2020lvq", "2007.12345"))

	plan := m.Plan(scan.Occurrences)

	if len(plan.Replacements) != 0 {
		t.Errorf("Replacements = %v, want none for an already canonical document", plan.Replacements)
	}
	if len(plan.Conflicts) != 0 {
		t.Errorf("Conflicts = %v, want none for a single spelling", plan.Conflicts)
	}
}

func TestPlan_SpellingVariantsNotAConflict(t *testing.T) {
	// arXiv:2007.12345v1 and 2007.12345 normalize to the same key; that is
	// a rewrite, not a conflict.
	text := `\cite{arXiv:2007.12345v1} and \cite{2007.12345}`
	scan := cite.Scan(text)

	m := New(nil)
	m.Add(id(t, "2007.12345"), rec("Cox:2020lvq", "Cox:2020lvq", "2007.12345"))

	plan := m.Plan(scan.Occurrences)

	if len(plan.Conflicts) != 0 {
		t.Errorf("Conflicts = %v, want none", plan.Conflicts)
	}
	if len(plan.Replacements) != 1 {
		t.Fatalf("Replacements = %v, want the variant spelling rewritten", plan.Replacements)
	}
	if plan.Replacements[0].Text != "2007.12345" {
		t.Errorf("replacement text = %q", plan.Replacements[0].Text)
	}
}

func TestPlan_DuplicateInOneList(t *testing.T) {
	// Both keys in one \cite list canonicalize to the same identifier;
	// the second becomes a deletion.
	text := `\cite{2007.12345, Cox:2020lvq}`
	scan := cite.Scan(text)

	m := New(nil)
	shared := rec("Cox:2020lvq", "Cox:2020lvq", "2007.12345")
	m.Add(id(t, "2007.12345"), shared)
	m.Add(id(t, "Cox:2020lvq"), shared)

	plan := m.Plan(scan.Occurrences)

	if len(plan.Replacements) != 1 {
		t.Fatalf("Replacements = %v, want 1", plan.Replacements)
	}
	repl := plan.Replacements[0]
	if !repl.Delete {
		t.Errorf("replacement = %+v, want a deletion", repl)
	}
	if text[repl.Start:repl.End] != "Cox:2020lvq" {
		t.Errorf("deletion span = %q, want the later duplicate", text[repl.Start:repl.End])
	}
}

func TestPlan_SameCanonicalInSeparateLists(t *testing.T) {
	// The same work cited in two different \cite commands stays cited in
	// both; deduplication is per list.
	text := `\cite{2007.12345} and \cite{Cox:2020lvq}`
	scan := cite.Scan(text)

	m := New(nil)
	shared := rec("Cox:2020lvq", "Cox:2020lvq", "2007.12345")
	m.Add(id(t, "2007.12345"), shared)
	m.Add(id(t, "Cox:2020lvq"), shared)

	plan := m.Plan(scan.Occurrences)

	if len(plan.Replacements) != 1 {
		t.Fatalf("Replacements = %v, want 1", plan.Replacements)
	}
	if plan.Replacements[0].Delete {
		t.Error("replacement is a deletion, want a rewrite")
	}
}

func TestPlan_UnresolvedReported(t *testing.T) {
	text := `\cite{2007.12345} and \cite{Ghost:2020abc}`
	scan := cite.Scan(text)

	m := New(nil)
	m.Add(id(t, "2007.12345"), rec("Cox:2020lvq", "Cox:2020lvq", "2007.12345"))
	m.Add(id(t, "Ghost:2020abc"), nil)

	plan := m.Plan(scan.Occurrences)

	if !reflect.DeepEqual(plan.Unresolved, []string{"Ghost:2020abc"}) {
		t.Errorf("Unresolved = %v, want [Ghost:2020abc]", plan.Unresolved)
	}
	if _, ok := plan.CanonicalFor("Ghost:2020abc"); ok {
		t.Error("unresolved identifier must have no canonical form")
	}
}

func TestPlan_CaseInsensitiveGrouping(t *testing.T) {
	// Texkeys differing only in case are the same identity; the canonical
	// spelling comes from the record.
	text := `\cite{cox:2020lvq}`
	scan := cite.Scan(text)

	m := New([]cite.Type{cite.TypeTexKey})
	m.Add(id(t, "cox:2020lvq"), rec("Cox:2020lvq", "Cox:2020lvq"))

	plan := m.Plan(scan.Occurrences)

	if len(plan.Replacements) != 1 || plan.Replacements[0].Text != "Cox:2020lvq" {
		t.Errorf("Replacements = %v, want rewrite to the record's spelling", plan.Replacements)
	}
}
