// Package contacts reads the user's contacts directory from a YAML file.
package contacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Phone is one number attached to a contact.
type Phone struct {
	ID      string `yaml:"id"      json:"id"`
	Number  string `yaml:"number"  json:"number"`
	Primary bool   `yaml:"primary" json:"isPrimary,omitempty"`
}

// Contact is one directory entry.
type Contact struct {
	ID     string  `yaml:"id"     json:"id"`
	Name   string  `yaml:"name"   json:"name"`
	Phones []Phone `yaml:"phones" json:"phoneNumbers,omitempty"`
}

// Directory lists contacts.
type Directory interface {
	List(ctx context.Context) ([]Contact, error)
}

// FileDirectory is a Directory backed by a YAML document of the form
//
//	contacts:
//	  - id: "1"
//	    name: Ada
//	    phones: [{id: "m", number: "+1 555 0100", primary: true}]
type FileDirectory struct {
	path string
}

func NewFileDirectory(path string) *FileDirectory {
	return &FileDirectory{path: path}
}

type document struct {
	Contacts []Contact `yaml:"contacts"`
}

// List returns contacts that have an ID, sorted by name. A missing file is
// an empty directory.
func (d *FileDirectory) List(ctx context.Context) ([]Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read contacts: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse contacts %s: %w", d.path, err)
	}

	out := make([]Contact, 0, len(doc.Contacts))
	for _, c := range doc.Contacts {
		if strings.TrimSpace(c.ID) == "" {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}
