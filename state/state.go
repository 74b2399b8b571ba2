// Package state persists the few UI preferences that outlive a session.
package state

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/metaoverlayfs/panel/pkg/paths"
)

// FileName is the preferences file inside the state directory.
const FileName = "prefs.yml"

// Prefs are the retained UI preferences.
type Prefs struct {
	// AutoRefresh gates the periodic dashboard refresh.
	AutoRefresh bool `yaml:"auto_refresh" json:"autoRefresh"`
	// Filter is the last selected modules filter.
	Filter string `yaml:"filter,omitempty" json:"filter,omitempty"`
}

// Defaults returns the preferences used when nothing is stored.
func Defaults() Prefs {
	return Prefs{AutoRefresh: true, Filter: "all"}
}

// File reads and writes preferences at a fixed path.
type File struct {
	path string
}

// NewFile creates a File at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// DefaultFile returns the preferences file in the state directory.
func DefaultFile() *File {
	return NewFile(filepath.Join(paths.StateDir(), FileName))
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Load loads the preferences.
// Returns the defaults if the file doesn't exist.
func (f *File) Load() (Prefs, error) {
	prefs := Defaults()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return prefs, nil
		}
		return prefs, fmt.Errorf("read state file: %w", err)
	}

	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return Defaults(), fmt.Errorf("parse state file: %w", err)
	}
	if prefs.Filter == "" {
		prefs.Filter = Defaults().Filter
	}
	return prefs, nil
}

// Save saves the preferences.
func (f *File) Save(prefs Prefs) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := yaml.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	// Atomic replace.
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// Update loads, applies fn and saves.
func (f *File) Update(fn func(*Prefs)) (Prefs, error) {
	prefs, err := f.Load()
	if err != nil {
		return prefs, err
	}
	fn(&prefs)
	return prefs, f.Save(prefs)
}
