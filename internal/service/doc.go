// Package service contains the application-specific use cases and business
// logic. It orchestrates interactions between domain objects and the
// repositories defined in internal/store to fulfill application features.
//
// Services receive their dependencies through constructor injection and
// apply transactional boundaries where an operation spans multiple store
// calls. Store-level errors are translated to service-level ones so the
// delivery layer never depends on persistence details.
package service
