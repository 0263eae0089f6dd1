package main

import (
	"github.com/spf13/cobra"

	"github.com/texkit/bibgen/internal/pipeline"
	"github.com/texkit/bibgen/internal/rewrite"
)

var (
	canonicalizeBib       string
	canonicalizeCanonical string
	canonicalizeWorkers   int
	canonicalizeDryRun    bool
)

func init() {
	rootCmd.AddCommand(canonicalizeCmd)
	canonicalizeCmd.Flags().StringVar(&canonicalizeBib, "bib", "", "Bibliography file path (default: <texfile>.bib)")
	canonicalizeCmd.Flags().StringVar(&canonicalizeCanonical, "canonical", "", "Preferred canonical identifier type: arxiv, texkey, or doi")
	canonicalizeCmd.Flags().IntVar(&canonicalizeWorkers, "workers", 0, "Concurrent lookups (default 4)")
	canonicalizeCmd.Flags().BoolVar(&canonicalizeDryRun, "dry-run", false, "Report conflicts and rewrites without touching any file")
}

var canonicalizeCmd = &cobra.Command{
	Use:   "canonicalize <texfile>",
	Short: "Rewrite citations to one canonical identifier per work",
	Long: `Group the document's citation keys by the paper they resolve to and
rewrite every \cite so each work is cited under a single canonical
identifier (arXiv number by default). Bibliography entries are re-keyed
to match.

Citing the same paper under different identifiers is reported as a
conflict together with the chosen replacement. The tex file is replaced
atomically; a document that is already canonical is left untouched.

Examples:
  bibgen canonicalize paper.tex
  bibgen canonicalize paper.tex --dry-run --human
  bibgen canonicalize paper.tex --canonical texkey`,
	Args: cobra.ExactArgs(1),
	RunE: runCanonicalize,
}

func runCanonicalize(cmd *cobra.Command, args []string) error {
	env := setupRun(args[0], canonicalizeBib, canonicalizeCanonical, false, canonicalizeWorkers)
	defer env.close()

	out, report := pipeline.Canonicalize(cmd.Context(), env.text, env.bibFile, env.suppl, env.pipelineCache(), env.client, env.opts)

	if !canonicalizeDryRun {
		if out != env.text {
			if err := rewrite.WriteFile(env.texPath, out); err != nil {
				exitWithError(ExitError, "%v", err)
			}
		}
		if err := env.bibFile.Flush(); err != nil {
			exitWithError(ExitError, "%v", err)
		}
	}

	if humanOutput {
		printReportHuman(report)
	} else {
		outputJSON(RunResponse{
			Document: env.texPath,
			Bib:      env.bibPath,
			DryRun:   canonicalizeDryRun,
			Report:   report,
		})
	}
	return nil
}
