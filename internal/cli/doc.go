// Package cli implements the command-line interface for nppes-extract.
//
// The cli package provides the Cobra-based command that runs an extraction, a
// latest subcommand that only resolves the newest archive URL, and a status
// subcommand that reports the manifest of the last run. Settings come from
// config defaults, an optional .env file, NPPES_* environment variables and flags,
// in increasing order of precedence.
package cli
