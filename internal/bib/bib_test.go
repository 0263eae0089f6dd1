package bib

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/texkit/bibgen/internal/cite"
	"github.com/texkit/bibgen/internal/record"
)

const twoEntries = `@article{Cox:2020lvq,
    author = "Cox, Peter",
    eprint = "2007.12345",
    doi = "10.1103/PhysRevD.101.075004"
}

@inproceedings{Smith:2019abc,
    title = "{Proceedings}"
}
`

func writeBib(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "refs.bib")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	f, err := Load(writeBib(t, twoEntries))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if got := f.Keys(); !reflect.DeepEqual(got, []string{"Cox:2020lvq", "Smith:2019abc"}) {
		t.Errorf("Keys() = %v", got)
	}

	e, ok := f.Get("Cox:2020lvq")
	if !ok {
		t.Fatal("Get(Cox:2020lvq) missing")
	}
	if e.EntryType != "article" {
		t.Errorf("EntryType = %q", e.EntryType)
	}
	if e.Eprint != "2007.12345" {
		t.Errorf("Eprint = %q", e.Eprint)
	}
	if e.DOI != "10.1103/physrevd.101.075004" {
		t.Errorf("DOI = %q", e.DOI)
	}
}

func TestLoad_Missing(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "absent.bib"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if f.Len() != 0 {
		t.Errorf("Len() = %d, want 0", f.Len())
	}
}

func TestLoad_DuplicateKeysKeepFirst(t *testing.T) {
	content := "@article{Cox:2020lvq,\n    year = \"2020\"\n}\n\n@article{Cox:2020lvq,\n    year = \"2021\"\n}\n"
	f, err := Load(writeBib(t, content))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if f.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", f.Len())
	}
	e, _ := f.Get("Cox:2020lvq")
	if !strings.Contains(e.Raw, "2020") || strings.Contains(e.Raw, "2021") {
		t.Errorf("kept entry = %q, want the first one", e.Raw)
	}
}

func TestFlush_RoundTrip(t *testing.T) {
	path := writeBib(t, twoEntries)

	f, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	f.Put(Entry{Key: "New:2022xyz", EntryType: "article", Raw: "@article{New:2022xyz,\n    year = \"2022\"\n}\n"})
	if err := f.Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := reloaded.Keys(); !reflect.DeepEqual(got, []string{"Cox:2020lvq", "Smith:2019abc", "New:2022xyz"}) {
		t.Errorf("Keys() after reload = %v", got)
	}
}

func TestFlush_CleanFileWritesNothing(t *testing.T) {
	path := writeBib(t, twoEntries)

	f, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	before, _ := os.Stat(path)
	if err := f.Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	after, _ := os.Stat(path)
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("Flush() rewrote a clean file")
	}
}

func TestFlush_Idempotent(t *testing.T) {
	path := writeBib(t, twoEntries)

	f, _ := Load(path)
	f.Put(Entry{Key: "New:2022xyz", EntryType: "article", Raw: "@article{New:2022xyz,\n}\n"})
	if err := f.Flush(); err != nil {
		t.Fatal(err)
	}
	first, _ := os.ReadFile(path)

	g, _ := Load(path)
	g.Put(Entry{Key: "New:2022xyz", EntryType: "article", Raw: "@article{New:2022xyz,\n}\n"})
	if err := g.Flush(); err != nil {
		t.Fatal(err)
	}
	second, _ := os.ReadFile(path)

	if string(first) != string(second) {
		t.Errorf("second run changed the file:\n%s\nvs:\n%s", first, second)
	}
}

func TestPut_ReplaceInPlace(t *testing.T) {
	f, _ := Load(writeBib(t, twoEntries))

	f.Put(Entry{Key: "Cox:2020lvq", EntryType: "article", Raw: "@article{Cox:2020lvq,\n    year = \"2021\"\n}\n"})

	if got := f.Keys(); !reflect.DeepEqual(got, []string{"Cox:2020lvq", "Smith:2019abc"}) {
		t.Errorf("Keys() = %v, want original order preserved", got)
	}
	e, _ := f.Get("Cox:2020lvq")
	if !strings.Contains(e.Raw, "2021") {
		t.Errorf("entry not replaced: %q", e.Raw)
	}
}

func TestPutRecord(t *testing.T) {
	f := NewEmpty(filepath.Join(t.TempDir(), "refs.bib"))

	rec := &record.Record{
		EntryType: "article",
		Body:      "\n    year = \"2020\"",
		Source:    record.SourceResolver,
	}
	rec.SetAltID(cite.TypeArxiv, "2007.12345")
	f.PutRecord("2007.12345", rec)

	e, ok := f.Get("2007.12345")
	if !ok {
		t.Fatal("entry missing after PutRecord")
	}
	want := "@article{2007.12345,\n    year = \"2020\"\n}\n"
	if e.Raw != want {
		t.Errorf("Raw = %q, want %q", e.Raw, want)
	}
	if e.Eprint != "2007.12345" {
		t.Errorf("Eprint = %q", e.Eprint)
	}
}

func TestRekey(t *testing.T) {
	f, _ := Load(writeBib(t, twoEntries))

	f.Rekey("Cox:2020lvq", "2007.12345")

	if f.Has("Cox:2020lvq") {
		t.Error("old key still present")
	}
	e, ok := f.Get("2007.12345")
	if !ok {
		t.Fatal("new key missing")
	}
	if !strings.HasPrefix(e.Raw, "@article{2007.12345,") {
		t.Errorf("header not rewritten: %q", e.Raw)
	}
	if got := f.Keys(); !reflect.DeepEqual(got, []string{"2007.12345", "Smith:2019abc"}) {
		t.Errorf("Keys() = %v, want order preserved", got)
	}
}

func TestRekey_TargetExistsDropsOld(t *testing.T) {
	content := twoEntries + "\n@article{2007.12345,\n    year = \"2020\"\n}\n"
	f, _ := Load(writeBib(t, content))

	f.Rekey("Cox:2020lvq", "2007.12345")

	if f.Has("Cox:2020lvq") {
		t.Error("old key still present")
	}
	if f.Len() != 2 {
		t.Errorf("Len() = %d, want 2", f.Len())
	}
}

func TestRebuild_CarriesSupplementalEntries(t *testing.T) {
	dir := t.TempDir()
	supplPath := filepath.Join(dir, "noinspire.bib")
	if err := os.WriteFile(supplPath, []byte("@misc{Smith:2019abc,\n    note = \"curated\"\n}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	suppl, err := LoadSupplemental(supplPath)
	if err != nil {
		t.Fatal(err)
	}

	f, _ := Load(writeBib(t, twoEntries))
	fresh := f.Rebuild(suppl)

	if fresh.Has("Cox:2020lvq") {
		t.Error("resolver entry survived a rebuild")
	}
	e, ok := fresh.Get("Smith:2019abc")
	if !ok {
		t.Fatal("supplemental entry dropped by rebuild")
	}
	if e.Source != record.SourceSupplemental {
		t.Errorf("Source = %q, want supplemental", e.Source)
	}
	if !strings.Contains(e.Raw, "curated") {
		t.Errorf("rebuild kept the resolver version: %q", e.Raw)
	}
}

func TestReplacements(t *testing.T) {
	f, _ := Load(writeBib(t, twoEntries))

	got := f.Replacements()
	want := map[string]string{"Cox:2020lvq": "2007.12345"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Replacements() = %v, want %v", got, want)
	}
}

func TestEntry_Record(t *testing.T) {
	f, _ := Load(writeBib(t, twoEntries))
	e, _ := f.Get("Cox:2020lvq")

	rec := e.Record()
	if rec.Key != "Cox:2020lvq" {
		t.Errorf("Key = %q", rec.Key)
	}
	if got, _ := rec.AltID(cite.TypeTexKey); got != "Cox:2020lvq" {
		t.Errorf("texkey alt = %q", got)
	}
	if got, _ := rec.AltID(cite.TypeArxiv); got != "2007.12345" {
		t.Errorf("arxiv alt = %q", got)
	}
	if got, _ := rec.AltID(cite.TypeDOI); got != "10.1103/physrevd.101.075004" {
		t.Errorf("doi alt = %q", got)
	}

	// The body must reassemble into a storable entry.
	rebuilt := "@" + rec.EntryType + "{" + rec.Key + "," + rec.Body + "\n}\n"
	if rebuilt != e.Raw {
		t.Errorf("rebuilt = %q, want %q", rebuilt, e.Raw)
	}
}

func TestLoad_UnterminatedEntryKept(t *testing.T) {
	f, err := Load(writeBib(t, "@article{Cox:2020lvq,\n    year = \"2020\"\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !f.Has("Cox:2020lvq") {
		t.Error("unterminated trailing entry dropped")
	}
}
