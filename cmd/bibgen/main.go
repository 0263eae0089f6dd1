// Package main provides the bibgen CLI entry point.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bibgen",
	Short: "Bibliography generator and citation canonicalizer for LaTeX",
	Long: `bibgen scans a LaTeX document for citation keys, resolves each one
against the INSPIRE-HEP literature API, and maintains the document's
BibTeX bibliography incrementally.

It understands arXiv numbers, INSPIRE texkeys, and DOIs, detects when
the same paper is cited under more than one identifier, and can rewrite
the document so every work is cited under one canonical key.

References INSPIRE does not know can be placed in noinspire.bib in the
working directory; those entries are used as-is and never re-queried.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Load .env if present (for BIBGEN_API_URL)
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}
