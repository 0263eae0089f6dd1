package main

import (
	"github.com/spf13/cobra"

	"github.com/texkit/bibgen/internal/pipeline"
)

var (
	generateOverwrite bool
	generateBib       string
	generateCanonical string
	generateWorkers   int
	generateDryRun    bool
)

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().BoolVar(&generateOverwrite, "overwrite", false, "Rebuild the bib file instead of appending (supplemental entries are kept)")
	generateCmd.Flags().StringVar(&generateBib, "bib", "", "Bibliography file path (default: <texfile>.bib)")
	generateCmd.Flags().StringVar(&generateCanonical, "canonical", "", "Preferred canonical identifier type: arxiv, texkey, or doi")
	generateCmd.Flags().IntVar(&generateWorkers, "workers", 0, "Concurrent lookups (default 4)")
	generateCmd.Flags().BoolVar(&generateDryRun, "dry-run", false, "Resolve and report without writing the bib file")
}

var generateCmd = &cobra.Command{
	Use:   "generate <texfile>",
	Short: "Generate or update the bibliography for a tex file",
	Long: `Parse a tex file for \cite commands and download citation data from
INSPIRE. By default new references are appended to the existing bib
file; references already present are not looked up again.

With --overwrite every cited reference is re-resolved and the bib file
is rebuilt. Entries from noinspire.bib always survive a rebuild.

Examples:
  bibgen generate paper.tex
  bibgen generate paper.tex --overwrite
  bibgen generate paper.tex --bib refs.bib --workers 8`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	env := setupRun(args[0], generateBib, generateCanonical, generateOverwrite, generateWorkers)
	defer env.close()

	report := pipeline.Generate(cmd.Context(), env.text, env.bibFile, env.suppl, env.pipelineCache(), env.client, env.opts)

	if !generateDryRun {
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
			DryRun:   generateDryRun,
			Report:   report,
		})
	}
	return nil
}
