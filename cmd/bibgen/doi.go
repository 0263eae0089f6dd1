package main

import (
	"github.com/spf13/cobra"

	"github.com/texkit/bibgen/internal/pdf"
)

func init() {
	rootCmd.AddCommand(doiCmd)
}

var doiCmd = &cobra.Command{
	Use:   "doi <pdffile>",
	Short: "Extract the DOI and arXiv number from a PDF",
	Long: `Scan the first pages of a PDF for a DOI and an arXiv number. Useful
for building noinspire.bib entries for references INSPIRE does not have.`,
	Args: cobra.ExactArgs(1),
	RunE: runDOI,
}

func runDOI(cmd *cobra.Command, args []string) error {
	ids, err := pdf.Extract(args[0])
	if err != nil {
		exitWithError(ExitDataError, "reading %s: %v", args[0], err)
	}

	if humanOutput {
		if ids.DOI == "" && ids.Arxiv == "" {
			outputHuman("No identifiers found.\n")
			return nil
		}
		if ids.DOI != "" {
			outputHuman("doi: %s\n", ids.DOI)
		}
		if ids.Arxiv != "" {
			outputHuman("arxiv: %s\n", ids.Arxiv)
		}
		return nil
	}

	return outputJSON(ids)
}
