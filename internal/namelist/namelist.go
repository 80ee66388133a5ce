// Package namelist reads the model's generated namelist text and appends
// settings to a case's user_nl files.
package namelist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Entry is a single key = value assignment.
type Entry struct {
	Group string
	Key   string
	// Raw is the value text exactly as written, without surrounding space.
	Raw  string
	Line int
}

// Quoted returns the value with one pair of enclosing quotes removed. The
// second return is false if the value is not a quoted string.
func (e Entry) Quoted() (string, bool) {
	v := e.Raw
	if len(v) >= 2 {
		q := v[0]
		if (q == '\'' || q == '"') && v[len(v)-1] == q {
			return v[1 : len(v)-1], true
		}
	}
	return "", false
}

// Namelist is the ordered set of assignments parsed from namelist text.
type Namelist struct {
	Entries []Entry
}

// Parse reads namelist text. Group headers ("&clm_inparm") set the group of
// following entries, "/" closes a group, and "!" starts a comment line.
// Lines without "=" are ignored.
func Parse(r io.Reader) (*Namelist, error) {
	nl := &Namelist{}
	group := ""

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "!"):
			continue
		case strings.HasPrefix(line, "&"):
			group = strings.TrimSpace(line[1:])
			continue
		case line == "/":
			group = ""
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		nl.Entries = append(nl.Entries, Entry{
			Group: group,
			Key:   strings.ToLower(key),
			Raw:   strings.TrimSpace(value),
			Line:  lineNo,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read namelist: %w", err)
	}
	return nl, nil
}

// ParseFile parses the namelist at path.
func ParseFile(path string) (*Namelist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open namelist %s: %w", path, err)
	}
	defer f.Close()

	nl, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return nl, nil
}

// Lookup returns the first entry for key. Keys compare case-insensitively.
func (n *Namelist) Lookup(key string) (Entry, bool) {
	key = strings.ToLower(key)
	for _, e := range n.Entries {
		if e.Key == key {
			return e, true
		}
	}
	return Entry{}, false
}

// LookupString returns the first quoted string value assigned to key.
// Unquoted assignments of the key are skipped.
func (n *Namelist) LookupString(key string) (string, bool) {
	key = strings.ToLower(key)
	for _, e := range n.Entries {
		if e.Key != key {
			continue
		}
		if v, ok := e.Quoted(); ok {
			return v, true
		}
	}
	return "", false
}
