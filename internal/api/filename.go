package api

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tphakala/segmentlab/internal/errors"
)

const (
	maxNameLength = 120
	fallbackName  = "upload"
)

// SanitizeFilename folds diacritics ("Pöllö" becomes "Pollo"), drops any
// directory part and replaces everything outside [A-Za-z0-9._-] with '_'.
// The result is never empty and never starts with a dot.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, name); err == nil {
		name = folded
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")

	if len(out) > maxNameLength {
		ext := filepath.Ext(out)
		if len(ext) > 16 {
			ext = ""
		}
		out = out[:maxNameLength-len(ext)] + ext
	}
	if out == "" {
		return fallbackName
	}
	return out
}

// resolveResultFolder validates an optional custom result folder. It must be
// a relative path staying inside root; the returned path is absolute under root.
func resolveResultFolder(root, custom string) (string, error) {
	custom = strings.TrimSpace(custom)
	if custom == "" {
		return root, nil
	}
	if filepath.IsAbs(custom) || strings.HasPrefix(custom, "/") {
		return "", errors.ValidationError("result folder must be relative")
	}
	clean := filepath.Clean(custom)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.ValidationError("result folder must stay inside the results directory")
	}
	return filepath.Join(root, clean), nil
}
