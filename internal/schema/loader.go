package schema

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// LoadDir reads every *.json schema document in dir and populates the
// registry. Documents failing validation are rejected, not skipped: a bad
// schema would otherwise surface as broken rendering much later.
func LoadDir(dir string, reg *Registry) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}

	var schemas []*Schema
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		s, err := LoadFile(path)
		if err != nil {
			return err
		}
		schemas = append(schemas, s)
	}

	reg.Load(schemas)
	log.Printf("Loaded %d schemas into registry", len(schemas))
	return nil
}

// LoadFile reads and validates a single schema document.
func LoadFile(path string) (*Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates a schema document from raw JSON.
func Parse(raw []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
