package cite

import (
	"regexp"
	"strings"
)

// Occurrence is one citation token found in document text, with the byte
// span of the bare key so the rewriter can replace it in place.
type Occurrence struct {
	Identifier
	Start int // Byte offset of the key within the document
	End   int // Byte offset one past the key
	List  int // Index of the \cite command the key appeared in
}

// InvalidToken reports a token inside a citation command that matched no
// supported identifier grammar.
type InvalidToken struct {
	Raw   string `json:"raw"`
	Start int    `json:"start"`
}

// ScanResult holds everything one pass over a document found.
type ScanResult struct {
	Occurrences []Occurrence
	Invalid     []InvalidToken

	lists int
}

// citeCmdRE matches the argument block of \cite-family commands:
// \cite, \citep, \citet, \autocite, \textcite, \parencite and their
// starred variants. The capture group is the comma-separated key list.
var citeCmdRE = regexp.MustCompile(`\\(?:cite[pt]?|autocite|textcite|parencite)\*?\{([^}]*)\}`)

// Scan extracts citation tokens from document text. Scanning the same text
// twice yields the same result. Lines whose first non-blank character is %
// are skipped as comments. Malformed tokens are collected, never dropped
// silently, and do not stop the scan.
func Scan(text string) ScanResult {
	var res ScanResult

	lineStart := 0
	for lineStart <= len(text) {
		lineEnd := strings.IndexByte(text[lineStart:], '\n')
		if lineEnd == -1 {
			lineEnd = len(text)
		} else {
			lineEnd += lineStart
		}
		line := text[lineStart:lineEnd]

		if !isCommentLine(line) {
			scanLine(line, lineStart, &res)
		}

		lineStart = lineEnd + 1
	}

	return res
}

// Keys returns the distinct normalized identifiers in document order.
func (r ScanResult) Keys() []Identifier {
	seen := make(map[string]bool)
	var ids []Identifier
	for _, occ := range r.Occurrences {
		if !seen[occ.Normalized] {
			seen[occ.Normalized] = true
			ids = append(ids, occ.Identifier)
		}
	}
	return ids
}

func scanLine(line string, offset int, res *ScanResult) {
	for _, m := range citeCmdRE.FindAllStringSubmatchIndex(line, -1) {
		argStart, argEnd := m[2], m[3]
		scanKeyList(line[argStart:argEnd], offset+argStart, res.lists, res)
		res.lists++
	}
}

// scanKeyList splits a comma-separated key list and records each token with
// its span. A leading * (starred citation entry) is not part of the key.
func scanKeyList(list string, offset, listIndex int, res *ScanResult) {
	pos := 0
	for _, part := range strings.Split(list, ",") {
		trimmed := strings.TrimSpace(part)
		start := offset + pos + strings.Index(part, trimmed)
		if strings.HasPrefix(trimmed, "*") {
			trimmed = trimmed[1:]
			start++
		}
		pos += len(part) + 1

		if trimmed == "" {
			continue
		}

		id, err := New(trimmed)
		if err != nil {
			res.Invalid = append(res.Invalid, InvalidToken{Raw: trimmed, Start: start})
			continue
		}
		res.Occurrences = append(res.Occurrences, Occurrence{
			Identifier: id,
			Start:      start,
			End:        start + len(trimmed),
			List:       listIndex,
		})
	}
}

func isCommentLine(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	return strings.HasPrefix(trimmed, "%")
}
