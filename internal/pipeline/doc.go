// Package pipeline runs one NPPES extraction from index page to filtered CSV.
//
// A run moves through a fixed sequence of phases: the index page is resolved to the
// newest Monthly V2 archive, the archive is downloaded into memory, the provider CSV
// member is located, and the member is streamed in batches through the active and
// region predicates into the output file. No phase is retried; the first failure
// aborts the run and is returned as an *Error whose Kind names the failing step.
package pipeline
