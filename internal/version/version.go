// Package version exposes the build version reported in provenance
// reportlets.
package version

// Version is the tool version. Overridden at release time via -ldflags.
var Version = "0.3.0-dev"
