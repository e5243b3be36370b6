// Package filter provides the row predicates applied to NPPES provider batches.
//
// A Predicate names the header aliases it accepts and how it tests a cell. Aliases
// model the header drift between NPPES file revisions: the first alias present in a
// batch's header is the column the predicate reads. When no alias is present the
// predicate's MissingPolicy decides; the default passes every row.
//
// Example usage:
//
//	set := filter.Set{
//	    filter.Active(filter.DeactivationColumns...),
//	    filter.InRegion("DE", filter.StateColumns...),
//	}
//
//	kept, stats := set.Apply(batch)
package filter

import (
	"strings"

	"github.com/pfrederiksen/nppes-extract/internal/table"
)

// DeactivationColumns are the accepted names of the deactivation date column
var DeactivationColumns = []string{
	"NPI Deactivation Date",
}

// StateColumns are the accepted names of the practice location state column
var StateColumns = []string{
	"Provider Business Practice Location Address State",
	"Provider Business Practice Location State",
	"Provider Business Practice Location Address State Name",
}

// MissingPolicy decides the outcome for every row when a predicate's column is absent
type MissingPolicy int

const (
	// PassThrough treats the predicate as true for every row
	PassThrough MissingPolicy = iota
	// DropAll treats the predicate as false for every row
	DropAll
)

// Predicate is a column-based row test
type Predicate struct {
	Name    string
	Aliases []string
	Missing MissingPolicy
	Match   func(value string) bool
}

// Resolve returns the index and name of the first alias present in header,
// or -1 and "" if none is.
func (p *Predicate) Resolve(header []string) (int, string) {
	for _, alias := range p.Aliases {
		for i, h := range header {
			if h == alias {
				return i, alias
			}
		}
	}
	return -1, ""
}

// Bind resolves the predicate against a header once, for use on each row
func (p *Predicate) Bind(header []string) Bound {
	col, name := p.Resolve(header)
	return Bound{pred: p, column: col, name: name}
}

// Bound is a predicate resolved against one batch header
type Bound struct {
	pred   *Predicate
	column int
	name   string
}

// Column returns the header name in use, or "" when no alias matched
func (b Bound) Column() string {
	return b.name
}

// Present reports whether one of the predicate's aliases is in the header
func (b Bound) Present() bool {
	return b.column >= 0
}

// Keep evaluates the predicate for a row
func (b Bound) Keep(row []string) bool {
	if b.column < 0 {
		return b.pred.Missing == PassThrough
	}
	value := ""
	if b.column < len(row) {
		value = row[b.column]
	}
	return b.pred.Match(value)
}

// Active keeps rows whose deactivation value is blank or a textual null
func Active(aliases ...string) *Predicate {
	return &Predicate{
		Name:    "active",
		Aliases: aliases,
		Match:   IsBlank,
	}
}

// InRegion keeps rows whose state value equals code, ignoring case and surrounding space
func InRegion(code string, aliases ...string) *Predicate {
	target := strings.ToUpper(strings.TrimSpace(code))
	return &Predicate{
		Name:    "region",
		Aliases: aliases,
		Match: func(value string) bool {
			return strings.ToUpper(strings.TrimSpace(value)) == target
		},
	}
}

// IsBlank reports whether a cell is empty or spells a null ("nan", "none") after trimming
func IsBlank(value string) bool {
	v := strings.TrimSpace(value)
	return v == "" || strings.EqualFold(v, "nan") || strings.EqualFold(v, "none")
}

// Stats counts the outcome of filtering one batch
type Stats struct {
	Read    int
	Kept    int
	Dropped int
	// Columns maps predicate name to the header column it used ("" if absent)
	Columns map[string]string
}

// Set is a conjunction of predicates; an empty Set keeps every row
type Set []*Predicate

// IsEmpty reports whether the set has no predicates
func (s Set) IsEmpty() bool {
	return len(s) == 0
}

// Bind resolves every predicate against header
func (s Set) Bind(header []string) []Bound {
	bound := make([]Bound, len(s))
	for i, p := range s {
		bound[i] = p.Bind(header)
	}
	return bound
}

// Matches reports whether a row passes every bound predicate
func Matches(bound []Bound, row []string) bool {
	for _, b := range bound {
		if !b.Keep(row) {
			return false
		}
	}
	return true
}

// Apply returns a batch holding only the rows that satisfy every predicate,
// in their original order, together with the counts.
func (s Set) Apply(batch *table.Batch) (*table.Batch, Stats) {
	bound := s.Bind(batch.Header)

	stats := Stats{
		Read:    batch.Len(),
		Columns: make(map[string]string, len(bound)),
	}
	for _, b := range bound {
		stats.Columns[b.pred.Name] = b.name
	}

	if s.IsEmpty() {
		stats.Kept = stats.Read
		return batch, stats
	}

	kept := make([][]string, 0)
	for _, row := range batch.Rows {
		if Matches(bound, row) {
			kept = append(kept, row)
		}
	}

	stats.Kept = len(kept)
	stats.Dropped = stats.Read - stats.Kept
	return batch.WithRows(kept), stats
}
