package caseops

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrValueNotFound is returned when no case XML file defines a variable.
var ErrValueNotFound = errors.New("case variable not found")

// envEntry is one <entry id="..." value="..."> element from an env_*.xml file.
type envEntry struct {
	ID    string `xml:"id,attr"`
	Value string `xml:"value,attr"`
}

type envFile struct {
	Entries []envEntry `xml:"entry"`
	Groups  []struct {
		Entries []envEntry `xml:"entry"`
	} `xml:"group"`
}

// EnvXML holds the variables defined by a case's env_*.xml files.
type EnvXML struct {
	values map[string]string
}

// LoadEnvXML reads every env_*.xml file in caseRoot. A missing directory or
// no files yields an empty set.
func LoadEnvXML(caseRoot string) (*EnvXML, error) {
	env := &EnvXML{values: make(map[string]string)}

	paths, err := filepath.Glob(filepath.Join(caseRoot, "env_*.xml"))
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		var f envFile
		if err := xml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		for _, e := range f.Entries {
			env.values[e.ID] = e.Value
		}
		for _, g := range f.Groups {
			for _, e := range g.Entries {
				env.values[e.ID] = e.Value
			}
		}
	}
	return env, nil
}

// Get returns the raw value of id.
func (e *EnvXML) Get(id string) (string, bool) {
	v, ok := e.values[id]
	return v, ok
}

// resolver expands $VAR and ${VAR} references in case values. Lookups go to
// the overrides first, then the XML values, then the process environment.
type resolver struct {
	overrides map[string]string
	xml       *EnvXML
}

func (r resolver) raw(id string) (string, bool) {
	if v, ok := r.overrides[id]; ok {
		return v, true
	}
	if r.xml != nil {
		if v, ok := r.xml.Get(id); ok {
			return v, true
		}
	}
	return "", false
}

// resolve returns the fully expanded value of id.
func (r resolver) resolve(id string) (string, error) {
	return r.expand(id, map[string]bool{})
}

func (r resolver) expand(id string, seen map[string]bool) (string, error) {
	if seen[id] {
		return "", fmt.Errorf("circular reference expanding %s", id)
	}
	v, ok := r.raw(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrValueNotFound, id)
	}
	if !strings.Contains(v, "$") {
		return v, nil
	}

	seen[id] = true
	defer delete(seen, id)

	var expandErr error
	out := os.Expand(v, func(ref string) string {
		if expandErr != nil {
			return ""
		}
		if _, ok := r.raw(ref); ok {
			s, err := r.expand(ref, seen)
			if err != nil {
				expandErr = err
			}
			return s
		}
		if s, ok := os.LookupEnv(ref); ok {
			return s
		}
		expandErr = fmt.Errorf("%w: %s (referenced by %s)", ErrValueNotFound, ref, id)
		return ""
	})
	if expandErr != nil {
		return "", expandErr
	}
	return out, nil
}
