// Package libraryfile reads YAML library import files and turns them into
// AddURLToLibrary requests.
package libraryfile

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Loader reads an import file from disk
type Loader struct {
	filePath string
}

// NewLoader creates a new import file loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Path returns the file the loader reads.
func (l *Loader) Path() string {
	return l.filePath
}

// Load reads and parses the import file
func (l *Loader) Load() (File, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return File{}, fmt.Errorf("failed to read import file: %w", err)
	}

	data = expandVariables(data)

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("failed to parse import yaml: %w", err)
	}

	return file, nil
}

// expandVariables replaces {{NAME}} with the NAME environment variable.
// Unset variables expand to an empty string.
func expandVariables(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}
