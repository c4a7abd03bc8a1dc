// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and app tokens from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: senate-lda-api-key, usaspending-api-key, socrata-app-token.
// A file named <source-id>-api-key overrides the kind-wide key for one source.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/diligence-engine/pkg/types"
)

// kindKeys maps adapter kinds to the secret file holding their credential.
var kindKeys = map[string]string{
	"senate_lda":  "senate-lda-api-key",
	"usaspending": "usaspending-api-key",
	"socrata":     "socrata-app-token",
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged at warn level but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "name", name, "error", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Apply fills empty source API keys from secrets and returns the IDs of the
// sources it filled. Keys already set in configuration win.
func Apply(sources []types.SourceConfig, secrets map[string]string) []string {
	var applied []string
	for i := range sources {
		s := &sources[i]
		if s.APIKey != "" {
			continue
		}
		key := secrets[strings.ReplaceAll(s.ID, "_", "-")+"-api-key"]
		if key == "" {
			key = secrets[kindKeys[s.Kind]]
		}
		if key != "" {
			s.APIKey = key
			applied = append(applied, s.ID)
		}
	}
	return applied
}
