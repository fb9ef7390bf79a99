// Package bids indexes a BIDS-organized dataset and partitions a subject's
// imaging files by modality for the workflow builders.
//
// Only the subset of the Brain Imaging Data Structure needed by the
// builders is implemented: entity parsing from file names, per-subject
// discovery, and task/echo filtering of functional runs.
package bids
