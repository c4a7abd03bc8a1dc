package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Search builds the CLI and runs one search against the configured sources.
func Search(query string) error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "search", "--query", query)
}

// Correlate builds the CLI and profiles one entity over the default window.
func Correlate(entity string) error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "correlate", "--entity", entity)
}
