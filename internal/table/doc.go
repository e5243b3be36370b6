// Package table streams comma-separated tables in fixed-size row batches.
//
// Every cell is kept as text; no numeric or date inference happens. Header names are
// trimmed of surrounding whitespace so that columns can be matched by name even when
// the upstream file carries stray spacing. Writer appends batches to an output file,
// writing the header once with the first batch that has rows.
package table
