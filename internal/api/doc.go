// Package api implements the HTTP diagnostic API and WebSocket event feed
// for a running simulation.
//
// This package provides:
//   - REST endpoints for devices, neighbours, edges and registry statistics
//   - Mode transitions, status overrides and execution triggers
//   - Status history and audit log queries
//   - A WebSocket hub relaying mesh events to subscribed clients
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Events
//
// Hub.Observe is registered as a mesh observer. Each event is broadcast on
// the channel named by its type (topology.finalized, device.replaced,
// device.result, device.status, round.completed); clients subscribe to the
// channels they want, or to "*" for all of them.
//
// # Authentication
//
// When a JWT secret is configured, status overrides, mode transitions and
// execution triggers require "Authorization: Bearer <token>" with a token
// issued for this simulation (see package auth). Read routes stay open.
//
// # Graceful Degradation
//
// History and audit endpoints answer 503 when their repositories are not
// configured; everything else works from the in-memory registry.
package api
