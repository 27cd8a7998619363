// Package logging provides opt-in file-based logging with rotation for Docwell.
// When the --debug flag is set, comprehensive logs are written to ~/.docwell/logs/
// for debugging and troubleshooting.
//
// Without --debug, CLI commands log minimally to stderr. The daemon
// (`daemon start --foreground`, which a background start re-runs) and
// the docwell-embedder child always set up file logging, with or
// without --debug.
package logging
