// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It acts as an adapter between external clients
// and the internal application services, translating HTTP concerns to
// business operations. It also hosts the WebSocket bridge that relays
// enrichment notifications to live clients.
package api
