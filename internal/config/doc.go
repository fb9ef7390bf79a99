// Package config holds the run-wide option set for a preprocessing run,
// the output-space specification, and the process-wide constants shared by
// the workflow builders.
package config
