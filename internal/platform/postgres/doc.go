// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces (repositories) defined in the internal/store and
// internal/task packages. It handles the details of database connections,
// query execution, and data mapping between domain entities and database
// records.
package postgres
