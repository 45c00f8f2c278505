// Package manufacturer implements the vendor-enrichment pipeline for the
// device registry.
//
// Looking up the manufacturer behind a MAC address means calling free
// third-party APIs that are slow and aggressively rate limited, so the
// pipeline is built around four pieces:
//
//   - a persisted status state machine (status.go) deciding when a lookup
//     attempt is warranted, with a cooldown that also rescues records left
//     pending by a crashed worker
//   - a shared rate limiter (limiter.go) pacing all outbound calls to a
//     minimum interval, across every concurrent lookup task
//   - a multi-source resolver (resolver.go) trying providers in priority
//     order and classifying heterogeneous responses into exactly one of
//     found, unknown, or error
//   - an in-flight guard (service.go) ensuring at most one concurrent
//     lookup task per MAC within the process
//
// Lookups are scheduled fire-and-forget from API requests; callers get a
// placeholder immediately and pick the result up from the registry later.
// A process restart can repeat an outbound call that was in flight; the
// registry state, not the in-flight set, is durable.
package manufacturer
