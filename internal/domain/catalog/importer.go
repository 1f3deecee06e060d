package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doctorsportal/portal/internal/platform/apperr"
)

// catalogFile is the on-disk shape of an import file. A bare list of
// treatments is also accepted.
type catalogFile struct {
	Treatments []Treatment `json:"treatments" yaml:"treatments"`
}

// LoadFile reads treatments from a .json, .yaml or .yml file.
func LoadFile(path string) ([]Treatment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported catalog file extension %q", filepath.Ext(path))
	}
}

func ParseJSON(data []byte) ([]Treatment, error) {
	data = bytes.TrimSpace(data)
	var items []Treatment
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decode catalog json: %w", err)
		}
	} else {
		var f catalogFile
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode catalog json: %w", err)
		}
		items = f.Treatments
	}
	return items, validate(items)
}

func ParseYAML(data []byte) ([]Treatment, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("decode catalog yaml: %w", err)
	}

	var items []Treatment
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		if err := node.Decode(&items); err != nil {
			return nil, fmt.Errorf("decode catalog yaml: %w", err)
		}
	} else {
		var f catalogFile
		if err := node.Decode(&f); err != nil {
			return nil, fmt.Errorf("decode catalog yaml: %w", err)
		}
		items = f.Treatments
	}
	return items, validate(items)
}

func validate(items []Treatment) error {
	if len(items) == 0 {
		return apperr.Validation("catalog has no treatments")
	}
	seen := make(map[string]bool, len(items))
	for i := range items {
		t := &items[i]
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			return apperr.Validation("treatment %d has no name", i+1)
		}
		if seen[t.Name] {
			return apperr.Validation("duplicate treatment %q", t.Name)
		}
		seen[t.Name] = true
		if t.Price < 0 {
			return apperr.Validation("treatment %q has a negative price", t.Name)
		}
		if t.Slots == nil {
			t.Slots = []string{}
		}
		slots := make(map[string]bool, len(t.Slots))
		for _, s := range t.Slots {
			if strings.TrimSpace(s) == "" {
				return apperr.Validation("treatment %q has an empty slot label", t.Name)
			}
			if slots[s] {
				return apperr.Validation("treatment %q lists slot %q twice", t.Name, s)
			}
			slots[s] = true
		}
	}
	return nil
}
