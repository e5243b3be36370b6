// Package storage persists the run manifest that accompanies an output CSV.
//
// The manifest is a small JSON file stored next to the output (rows.csv gets
// rows.csv.manifest.json). It records where the data came from, how many rows were
// read and kept, and whether the run finished. Because the output is truncated and
// then appended batch by batch, a failed run leaves a partial CSV behind; the
// manifest's status tells a reader whether the CSV is complete.
package storage
