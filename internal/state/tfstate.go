// Package state reads terraform state snapshots without invoking the tool in
// any mutating mode.
package state

import (
	"encoding/json"
	"fmt"
	"os"
)

// TFState models the on-disk terraform state file (version 4 JSON schema).
// Only the fields the inspector walks are declared.
type TFState struct {
	Version          int             `json:"version"`
	TerraformVersion string          `json:"terraform_version"`
	Serial           int             `json:"serial"`
	Lineage          string          `json:"lineage"`
	Resources        []ResourceState `json:"resources"`
}

// ResourceState is one managed resource in the state file.
type ResourceState struct {
	Mode      string             `json:"mode"`
	Type      string             `json:"type"`
	Name      string             `json:"name"`
	Module    string             `json:"module,omitempty"`
	Provider  string             `json:"provider"`
	Instances []ResourceInstance `json:"instances"`
}

// ResourceInstance is one instance of a (possibly for_each'd) resource.
type ResourceInstance struct {
	SchemaVersion int            `json:"schema_version"`
	IndexKey      any            `json:"index_key,omitempty"`
	Attributes    map[string]any `json:"attributes"`
}

// LoadTFState parses a state file from disk. A missing file returns (nil,
// nil), distinct from an empty-but-present state, which parses to a state
// with no resources.
func LoadTFState(path string) (*TFState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file %s: %w", path, err)
	}

	var st TFState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	return &st, nil
}

// resourcesOfType returns every instance of resources with the given type.
func (s *TFState) resourcesOfType(resourceType string) []ResourceInstance {
	var out []ResourceInstance
	for _, r := range s.Resources {
		if r.Type != resourceType || r.Mode == "data" {
			continue
		}
		out = append(out, r.Instances...)
	}
	return out
}

func stringAttr(attrs map[string]any, key string) string {
	if v, ok := attrs[key].(string); ok {
		return v
	}
	return ""
}
