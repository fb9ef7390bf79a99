// Package interfaces provides the node types the workflow builders
// instantiate: dataset access, run metadata extraction, summary reportlets,
// the derivatives sink, and the small generic adapters (identity and
// function nodes).
package interfaces
