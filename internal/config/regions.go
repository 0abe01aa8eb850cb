package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/inmet-alerts/internal/domain"
	"gopkg.in/yaml.v3"
)

// regionsFile is the layout of INMET_REGIONS_FILE:
//
//	regions:
//	  - code: "3509502"
//	    name: Campinas
//	    latitude: -22.9056
//	    longitude: -47.0608
type regionsFile struct {
	Regions []domain.City `yaml:"regions"`
}

// LoadRegionsFile reads and validates a YAML regions file.
func LoadRegionsFile(path string) ([]domain.City, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions file: %w", err)
	}
	return parseRegions(data)
}

func parseRegions(data []byte) ([]domain.City, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f regionsFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode regions file: %w", err)
	}
	if err := validateRegions(f.Regions); err != nil {
		return nil, err
	}
	return f.Regions, nil
}
