// Package store provides the persistence interfaces the application core
// depends on, shared database abstractions (DBTX, RunInTransaction) and the
// sentinel errors store implementations return.
package store
