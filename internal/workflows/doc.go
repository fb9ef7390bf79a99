// Package workflows assembles the preprocessing graphs: the top-level
// run workflow, one sub-workflow per subject, the anatomical sub-workflow
// and one functional sub-workflow per BOLD series, all wired through the
// engine's named ports.
package workflows
