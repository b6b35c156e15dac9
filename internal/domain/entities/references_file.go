package entities

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// referencesFile is the on-disk list of references produced by a scan pass.
type referencesFile struct {
	References []referenceEntry `yaml:"references"`
}

type referenceEntry struct {
	Uses       string `yaml:"uses"`
	Annotation string `yaml:"annotation"`
	File       string `yaml:"file"`
	Line       int    `yaml:"line"`
	Job        string `yaml:"job"`
	Name       string `yaml:"name"`
}

// NewReferencesFromFile reads a YAML references file. An entry whose uses
// string carries "#annotation" and no explicit annotation keeps the inline one.
func NewReferencesFromFile(path string) ([]Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read references file %q: %w", path, err)
	}
	return ParseReferences(data)
}

// ParseReferences parses the content of a references file.
func ParseReferences(data []byte) ([]Reference, error) {
	var file referencesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse references file: %w", err)
	}

	refs := make([]Reference, 0, len(file.References))
	for i, entry := range file.References {
		ref, err := ParseReferenceWithAnnotation(entry.Uses)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		if entry.Annotation != "" {
			ref.Annotation = entry.Annotation
		}
		ref.Provenance = Provenance{
			File: entry.File,
			Line: entry.Line,
			Job:  entry.Job,
			Name: entry.Name,
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
