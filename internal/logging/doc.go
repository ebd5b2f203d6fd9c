// Package logging provides opt-in file-based logging with rotation for bmgrep.
// When the --debug flag is set, structured JSON logs are written to
// ~/.bmgrep/logs/ so skipped files and worker activity can be inspected
// after a run.
//
// Without --debug, only warnings and errors go to stderr. Match output on
// stdout is never mixed with log records.
package logging
