package query

import "sort"

// Filter is a single (field, value) selection made by the analyst.
// Several filters may share the same Name; they are OR'd together at
// compile time, while filters on different fields are AND'd.
type Filter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Grouped maps a field name to every value selected for that field.
// It is derived from the flat filter list and never mutated directly.
type Grouped map[string][]string

// Group collapses a flat filter list into per-field value lists.
// Filters with an empty field name are dropped.
func Group(filters []Filter) Grouped {
	grouped := make(Grouped, len(filters))
	for _, f := range filters {
		if f.Name == "" {
			continue
		}
		grouped[f.Name] = append(grouped[f.Name], f.Value)
	}
	return grouped
}

// Fields returns the grouped field names in sorted order. Compiled filter
// clauses follow this order so that equal inputs produce equal payloads.
func (g Grouped) Fields() []string {
	fields := make([]string, 0, len(g))
	for name := range g {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}
