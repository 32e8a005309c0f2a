package config

import (
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
)

type targetsDocument struct {
	Targets []TargetConfig `toml:"targets"`
}

// ExportTargets renders targets as a [[targets]] TOML document that Load accepts.
func ExportTargets(w io.Writer, targets []TargetConfig) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	if err := enc.Encode(targetsDocument{Targets: targets}); err != nil {
		return fmt.Errorf("config export failed: %w", err)
	}
	return nil
}

// DecodeTargets parses a document written by ExportTargets.
func DecodeTargets(r io.Reader) ([]TargetConfig, error) {
	var doc targetsDocument
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("config decode targets failed: %w", err)
	}
	if _, err := OrderTargets(doc.Targets); err != nil {
		return nil, err
	}
	return doc.Targets, nil
}
