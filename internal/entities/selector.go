package entities

import (
	"fmt"
	"strings"
)

// Selector names the entity types to request: a group alias or an
// explicit list. The zero value selects nothing and fails to resolve.
type Selector struct {
	alias  string
	list   []string
	isList bool
}

// Alias selects the group named name.
func Alias(name string) Selector {
	return Selector{alias: name}
}

// List selects exactly the given entity types.
func List(ids ...string) Selector {
	return Selector{list: append([]string(nil), ids...), isList: true}
}

// IsZero reports whether the selector was never set.
func (s Selector) IsZero() bool {
	return !s.isList && s.alias == ""
}

// String renders the selector for logs.
func (s Selector) String() string {
	if s.isList {
		return "[" + strings.Join(s.list, ",") + "]"
	}
	return s.alias
}

// ParseSelector builds a selector from a decoded JSON or YAML value.
// Accepted shapes are a string, a []string and a []any holding only strings.
func ParseSelector(v any) (Selector, error) {
	switch val := v.(type) {
	case string:
		if val == "" {
			return Selector{}, fmt.Errorf("%w: empty entity group alias", ErrConfig)
		}
		return Alias(val), nil
	case []string:
		return List(val...), nil
	case []any:
		ids := make([]string, 0, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return Selector{}, fmt.Errorf("%w: entity list item %d is %T, want string", ErrConfig, i, item)
			}
			ids = append(ids, s)
		}
		return List(ids...), nil
	case nil:
		return Selector{}, fmt.Errorf("%w: entity selector is missing", ErrConfig)
	default:
		return Selector{}, fmt.Errorf("%w: unsupported entity selector type %T", ErrConfig, v)
	}
}
