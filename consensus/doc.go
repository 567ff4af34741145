// Package consensus runs time-boxed group decisions. A coordinator
// broadcasts a proposal, collects at most one counted vote per manager,
// and resolves the round at its deadline from approval and participation
// ratios over the required participant set.
package consensus
