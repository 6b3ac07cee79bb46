package lesson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse decodes a lesson from YAML or JSON and validates it. JSON is
// detected by a leading '{'.
func Parse(data []byte) (*Lesson, error) {
	var l Lesson
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &l); err != nil {
			return nil, fmt.Errorf("decode lesson json: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&l); err != nil {
			return nil, fmt.Errorf("decode lesson yaml: %w", err)
		}
	}
	if err := Validate(&l); err != nil {
		return nil, err
	}
	return &l, nil
}

// LoadFile reads and validates the lesson at path.
func LoadFile(path string) (*Lesson, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lesson: %w", err)
	}
	l, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if strings.TrimSpace(l.Title) == "" {
		l.Title = l.ID
	}
	return l, nil
}
