// Package entities resolves entity selectors to the entity-type identifiers
// requested from the detector.
//
// A selector is either a group alias ("pii", "spi") looked up in a static
// Table, or an explicit list of identifiers passed through untouched.
package entities

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

//go:embed groups.toml
var builtinGroups []byte

// Table maps group aliases to ordered entity-type lists. It is immutable
// once built; lookups return copies.
type Table struct {
	groups map[string][]string
}

type tableFile struct {
	Groups map[string][]string `toml:"groups"`
}

// Builtin returns the table compiled into the binary.
func Builtin() *Table {
	t, err := parseTable(builtinGroups, "groups.toml")
	if err != nil {
		panic("BUG: embedded entity groups are invalid: " + err.Error())
	}
	return t
}

// LoadTable reads a [groups] table from the TOML file at path.
func LoadTable(path string) (*Table, error) {
	var file tableFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}
	return newTable(file.Groups, path)
}

// NewTable builds a table from an in-memory mapping.
func NewTable(groups map[string][]string) (*Table, error) {
	return newTable(groups, "table")
}

func parseTable(data []byte, source string) (*Table, error) {
	var file tableFile
	if _, err := toml.Decode(string(data), &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, source, err)
	}
	return newTable(file.Groups, source)
}

func newTable(groups map[string][]string, source string) (*Table, error) {
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: %s: no entity groups defined", ErrConfig, source)
	}

	t := &Table{groups: make(map[string][]string, len(groups))}
	for name, ids := range groups {
		if name == "" {
			return nil, fmt.Errorf("%w: %s: empty group name", ErrConfig, source)
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("%w: %s: group %q has no entity types", ErrConfig, source, name)
		}
		for _, id := range ids {
			if id == "" {
				return nil, fmt.Errorf("%w: %s: group %q contains an empty entity type", ErrConfig, source, name)
			}
		}
		t.groups[name] = append([]string(nil), ids...)
	}
	return t, nil
}

// Lookup returns a copy of the entity types for alias.
func (t *Table) Lookup(alias string) ([]string, bool) {
	ids, ok := t.groups[alias]
	if !ok {
		return nil, false
	}
	return append([]string(nil), ids...), true
}

// Names returns the group aliases in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.groups))
	for name := range t.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
