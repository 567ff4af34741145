// Package types defines the shared data model of the coordination protocol:
// managers, messages, consensus votes and bilateral sessions.
//
// Payloads are opaque to every component in this module. Type-specific
// interpretation belongs to the caller, never to the coordination core.
package types
