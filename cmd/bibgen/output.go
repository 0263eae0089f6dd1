package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/texkit/bibgen/internal/pipeline"
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// warn writes a non-fatal notice to stderr.
func warn(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}

// exitWithError outputs an error in the appropriate format and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RunResponse wraps a pipeline report for JSON output.
type RunResponse struct {
	Document string           `json:"document"`
	Bib      string           `json:"bib"`
	DryRun   bool             `json:"dry_run,omitempty"`
	Report   *pipeline.Report `json:"report"`
}

// printReportHuman prints the end-of-run summary.
func printReportHuman(r *pipeline.Report) {
	outputHuman("Found %d references, resolved %d", r.Cited, r.Resolved)
	if r.FromCache > 0 {
		outputHuman(" (%d from cache)", r.FromCache)
	}
	outputHuman(".\n")
	if r.NewEntries > 0 {
		outputHuman("Added %d bibliography entries.\n", r.NewEntries)
	}
	if r.Rewrites > 0 {
		outputHuman("Rewrote %d citation keys.\n", r.Rewrites)
	}

	for _, c := range r.Conflicts {
		outputHuman("conflict: cited as %s; using %s\n", joinTokens(c.Tokens), c.Canonical)
	}
	for _, t := range r.Invalid {
		outputHuman("invalid identifier: %s (skipped)\n", t.Raw)
	}
	for _, key := range r.NotFound {
		outputHuman("could not find reference for %s.\n", key)
	}
	for _, key := range r.Unresolved {
		outputHuman("could not resolve %s; left unchanged.\n", key)
	}
	for _, f := range r.Failures {
		outputHuman("lookup failed for %s: %s\n", f.Token, f.Err)
	}
}

func joinTokens(tokens []string) string {
	out := ""
	for i, t := range tokens {
		if i > 0 {
			out += ", "
		}
		out += t
	}
	return out
}
