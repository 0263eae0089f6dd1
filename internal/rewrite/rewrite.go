// Package rewrite applies canonical-identifier replacements to document text.
package rewrite

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/texkit/bibgen/internal/merge"
)

// Apply produces the rewritten document. Replacements must carry spans from
// a scan of exactly this text; they are applied back to front so earlier
// spans stay valid. All text outside the replaced tokens is preserved
// byte-for-byte, and an empty plan returns the input unchanged.
func Apply(text string, repls []merge.Replacement) string {
	if len(repls) == 0 {
		return text
	}

	out := []byte(text)
	for i := len(repls) - 1; i >= 0; i-- {
		r := repls[i]
		if r.Start < 0 || r.End > len(out) || r.Start > r.End {
			continue
		}
		if r.Delete {
			start, end := widenForDelete(out, r.Start, r.End)
			out = append(out[:start], out[end:]...)
			continue
		}
		out = append(out[:r.Start], append([]byte(r.Text), out[r.End:]...)...)
	}
	return string(out)
}

// widenForDelete grows a deleted token's span to swallow one adjacent comma
// separator so the remaining key list stays well formed.
func widenForDelete(text []byte, start, end int) (int, int) {
	// Preceding comma (plus surrounding spaces) belongs to this token.
	i := start
	for i > 0 && text[i-1] == ' ' {
		i--
	}
	if i > 0 && text[i-1] == ',' {
		return i - 1, end
	}

	// Otherwise take the following comma and any space after it.
	j := end
	for j < len(text) && text[j] == ' ' {
		j++
	}
	if j < len(text) && text[j] == ',' {
		j++
		for j < len(text) && text[j] == ' ' {
			j++
		}
		return start, j
	}

	return start, end
}

// WriteFile replaces the file at path atomically: the content goes to a
// temp file in the same directory which is then renamed over the original.
// On any error the original file is left untouched.
func WriteFile(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".bibgen-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}

	// Carry over the original file's permissions when it exists.
	if info, err := os.Stat(path); err == nil {
		os.Chmod(tmpName, info.Mode())
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
