package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Form field types.
const (
	FormText    = "TEXT"
	FormInteger = "INTEGER"
	FormBoolean = "BOOLEAN"
)

// FormField is one field of a data entry form.
type FormField struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
	Type  string `json:"type" yaml:"type"`
}

// Form is a named set of fields.
type Form struct {
	Name   string      `json:"name" yaml:"name"`
	Fields []FormField `json:"fields" yaml:"fields"`
}

// DefaultForms are served when no forms file is configured.
func DefaultForms() []Form {
	return []Form{
		{
			Name: "account",
			Fields: []FormField{
				{ID: "accountId", Label: "Account ID", Type: FormInteger},
				{ID: "accountHolder", Label: "Account Holder", Type: FormText},
			},
		},
		{
			Name: "customer",
			Fields: []FormField{
				{ID: "customerName", Label: "Customer Name", Type: FormText},
				{ID: "customerAge", Label: "Customer Age", Type: FormInteger},
				{ID: "isActive", Label: "Is Active", Type: FormBoolean},
			},
		},
	}
}

// LoadForms reads a forms file. Files ending in .json are decoded as JSON,
// everything else as YAML.
func LoadForms(path string) ([]Form, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading forms file %s: %w", path, err)
	}

	var forms []Form
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &forms)
	} else {
		err = yaml.Unmarshal(data, &forms)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing forms file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(forms))
	for i, f := range forms {
		if f.Name == "" {
			return nil, fmt.Errorf("forms file %s: form %d has no name", path, i+1)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("forms file %s: duplicate form %q", path, f.Name)
		}
		seen[f.Name] = true
		for _, field := range f.Fields {
			if field.ID == "" {
				return nil, fmt.Errorf("forms file %s: form %q has a field without id", path, f.Name)
			}
		}
	}
	return forms, nil
}
