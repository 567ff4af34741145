// Package transport delivers coordination messages. Outbound delivery
// builds a signed, timestamped, nonce-bearing request and POSTs it with a
// bounded timeout and backoff retry; in-process targets are dispatched to a
// registered handler instead. The inbound Server is the callback surface an
// external manager exposes to receive messages, verifying signature,
// timestamp and nonce before dispatch.
//
// Every delivery attempt, successful or not, is reported to the registry so
// trust scores and liveness state never drift from observed reality.
package transport
