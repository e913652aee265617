package entities

import "fmt"

// Resolver turns selectors into entity-type lists against a fixed table.
type Resolver struct {
	table *Table
}

// NewResolver returns a resolver over table. A nil table uses Builtin().
func NewResolver(table *Table) *Resolver {
	if table == nil {
		table = Builtin()
	}
	return &Resolver{table: table}
}

// Table returns the table the resolver reads from.
func (r *Resolver) Table() *Table {
	return r.table
}

// Resolve returns the entity types named by sel.
//
// Explicit lists come back verbatim (as a copy); identifiers are not checked
// against any catalog, the detector rejects unknown ones. Aliases must exist
// in the table.
func (r *Resolver) Resolve(sel Selector) ([]string, error) {
	if sel.isList {
		return append([]string(nil), sel.list...), nil
	}
	if sel.alias == "" {
		return nil, fmt.Errorf("%w: entity selector is missing", ErrConfig)
	}
	ids, ok := r.table.Lookup(sel.alias)
	if !ok {
		return nil, fmt.Errorf("%w: unknown entity group %q", ErrConfig, sel.alias)
	}
	return ids, nil
}
