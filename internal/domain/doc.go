// Package domain contains the core entities of the application.
//
// The central entity is Item: a user-submitted text plus the metadata the
// enrichment pipeline derives from it (title, tags, description, summary)
// and the status of that derivation. The package enforces entity invariants
// through validation and the item status state machine; persistence is the
// responsibility of the store packages.
package domain
