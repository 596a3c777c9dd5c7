// Package secrets resolves credentials referenced from the configuration
// file. A value may name an environment variable as ${VAR} or ${VAR:-default},
// or a mounted secret file as file:/run/secrets/name. Secret values are never
// logged.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/logger"
)

const (
	// FilePrefix marks a value read from a file.
	FilePrefix = "file:"

	maxSecretFileSize = 64 * 1024
)

var refPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// Expand replaces ${VAR} and ${VAR:-default} references in s. A lone '$'
// is left alone so literal passwords survive. Unset variables without a
// default are an error.
func Expand(s string) (string, error) {
	var missing []string
	out := refPattern.ReplaceAllStringFunc(s, func(ref string) string {
		m := refPattern.FindStringSubmatch(ref)
		if v, ok := os.LookupEnv(m[1]); ok && v != "" {
			return v
		}
		if m[2] != "" {
			return m[3]
		}
		missing = append(missing, m[1])
		return ""
	})
	if len(missing) > 0 {
		return "", errors.Newf("missing environment variable(s): %s", strings.Join(missing, ", ")).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return out, nil
}

// ReadFile reads a secret file, dropping trailing newlines. Files readable
// by group or others are accepted with a warning.
func ReadFile(path string) (string, error) {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		return "", fileError(err, path)
	}
	if !info.Mode().IsRegular() {
		return "", fileError(fmt.Errorf("not a regular file"), path)
	}
	if info.Size() > maxSecretFileSize {
		return "", fileError(fmt.Errorf("larger than %d bytes", maxSecretFileSize), path)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Global().Module("secrets").Warn("secret file is readable by other users",
			logger.String("path", path),
			logger.String("mode", fmt.Sprintf("%04o", perm)))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fileError(err, path)
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fileError(fmt.Errorf("file is empty"), path)
	}
	return secret, nil
}

// Resolve returns the secret a configuration value refers to. Values without
// a reference are returned unchanged.
func Resolve(value string) (string, error) {
	if path, ok := strings.CutPrefix(value, FilePrefix); ok {
		return ReadFile(path)
	}
	if !strings.Contains(value, "${") {
		return value, nil
	}
	return Expand(value)
}

func fileError(err error, path string) error {
	return errors.New(fmt.Errorf("secret file: %w", err)).
		Component("secrets").
		Category(errors.CategoryConfiguration).
		FileContext(path).
		Build()
}
