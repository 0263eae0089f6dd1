// Package pdf extracts citation identifiers from PDF files, for building
// supplemental bibliography entries by hand.
package pdf

import (
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/texkit/bibgen/internal/cite"
)

// DOI pattern: 10.XXXX/... where XXXX is 4+ digits
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// arXiv label followed by a number, as printed in the margin of arXiv PDFs
// and in reference lists. Covers new and old number formats.
var arxivPattern = regexp.MustCompile(`(?i)arXiv[:\s]+(\d{4}\.\d{4,5}(?:v\d+)?|[a-z.\-]+/[09]\d{6})`)

// Identifiers holds what was found in a PDF. Either field may be empty.
type Identifiers struct {
	DOI   string `json:"doi,omitempty"`
	Arxiv string `json:"arxiv,omitempty"`
}

// Extract scans the first few pages of a PDF for a DOI and an arXiv number.
// Identifiers are usually on the first page; finding none is not an error.
func Extract(filePath string) (Identifiers, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return Identifiers{}, err
	}
	defer f.Close()

	maxPages := 3
	if r.NumPage() < maxPages {
		maxPages = r.NumPage()
	}

	var ids Identifiers
	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		if ids.DOI == "" {
			ids.DOI = findDOI(text)
		}
		if ids.Arxiv == "" {
			ids.Arxiv = findArxiv(text)
		}
		if ids.DOI != "" && ids.Arxiv != "" {
			break
		}
	}

	return ids, nil
}

// findDOI finds the first valid DOI in text, normalized.
func findDOI(text string) string {
	for _, match := range doiPattern.FindAllString(text, -1) {
		match = strings.TrimRight(match, ".,;:)")
		if norm, err := cite.Normalize(match, cite.TypeDOI); err == nil {
			return norm
		}
	}
	return ""
}

// findArxiv finds the first arXiv number in text, normalized.
func findArxiv(text string) string {
	for _, m := range arxivPattern.FindAllStringSubmatch(text, -1) {
		if norm, err := cite.Normalize(m[1], cite.TypeArxiv); err == nil {
			return norm
		}
	}
	return ""
}
