// Package configs provides the embedded configuration template written by
// `bmgrep config init`.
//
// The same template serves the user config
// (~/.config/bmgrep/config.yaml) and the project config (.bmgrep.yaml).
// Every key is listed with its default so the file documents itself.
//
// Configuration hierarchy (see internal/config Load()):
//  1. Hardcoded defaults
//  2. User config
//  3. Project config
//  4. Environment variables (BMGREP_*)
//  5. Command-line flags
package configs

import _ "embed"

// ConfigTemplate is the commented YAML written by `bmgrep config init`.
//
//go:embed config.example.yaml
var ConfigTemplate string
