// Package registry holds known managers and their live state. It is the
// only long-lived shared mutable state in the coordination core: transport
// and router read it and mutate manager records exclusively through
// RecordOutcome, while the heartbeat monitor drives SweepLiveness.
package registry
