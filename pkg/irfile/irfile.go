// Package irfile reads and writes modules in YAML, JSON or msgpack form.
package irfile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-globaldce/pkg/ir"
)

// Format is an on-disk module encoding.
type Format int

const (
	YAML Format = iota
	JSON
	Msgpack
)

func (f Format) String() string {
	switch f {
	case JSON:
		return "json"
	case Msgpack:
		return "msgpack"
	}
	return "yaml"
}

// Ext returns the file extension written for the format.
func (f Format) Ext() string {
	switch f {
	case JSON:
		return ".json"
	case Msgpack:
		return ".gdm"
	}
	return ".yaml"
}

// ParseFormat parses a format name as used in configuration.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "yaml", "yml":
		return YAML, nil
	case "json":
		return JSON, nil
	case "msgpack", "gdm", "binary":
		return Msgpack, nil
	}
	return YAML, fmt.Errorf("unknown module format %q (must be 'yaml', 'json' or 'msgpack')", s)
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".json":
		return JSON, nil
	case ".gdm", ".msgpack":
		return Msgpack, nil
	}
	return YAML, fmt.Errorf("unrecognized module file extension: %s", path)
}

// IsModuleFile reports whether path has an extension FormatFromPath accepts.
func IsModuleFile(path string) bool {
	_, err := FormatFromPath(path)
	return err == nil
}

// Decode reads a module document from r and builds the module.
func Decode(r io.Reader, format Format) (*ir.Module, error) {
	var doc Document
	var err error
	switch format {
	case JSON:
		err = json.NewDecoder(r).Decode(&doc)
	case Msgpack:
		err = msgpack.NewDecoder(r).Decode(&doc)
	default:
		err = yaml.NewDecoder(r).Decode(&doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s module: %w", format, err)
	}
	return doc.Build()
}

// Encode writes the live part of m to w.
func Encode(w io.Writer, m *ir.Module, format Format) error {
	doc, err := FromModule(m)
	if err != nil {
		return err
	}
	switch format {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(doc)
	case Msgpack:
		err = msgpack.NewEncoder(w).Encode(doc)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err = enc.Encode(doc); err == nil {
			err = enc.Close()
		}
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s module: %w", format, err)
	}
	return nil
}

// ReadFile loads a module, choosing the format from the extension. A
// document without a name is named after the file.
func ReadFile(path string) (*ir.Module, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open module: %w", err)
	}
	defer file.Close()

	m, err := Decode(file, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return m, nil
}

// WriteFile saves a module, choosing the format from the extension.
func WriteFile(path string, m *ir.Module) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := Encode(file, m, format); err != nil {
		return err
	}
	return file.Close()
}
