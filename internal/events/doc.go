// Package events provides the event plumbing that decouples the
// application's components.
//
// Two flows live here. TaskRequestEvent and the EventEmitter/EventHandler
// interfaces connect the request path to the background task dispatcher
// without either knowing the other. The Broker is an in-process pub/sub hub
// carrying ItemStatusEvent notifications from enrichment workers to live
// client connections: named channels, per-subscriber fan-out, best-effort
// non-blocking delivery, no replay.
package events
