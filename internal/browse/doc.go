// Package browse implements the budgeted recursive address-space browse
// engine.
//
// Browsing an OPC UA address space through a peripheral driver has four
// conflicting constraints: the driver channel is asynchronous and correlates
// replies to commands only by an opaque token, the namespace size is unknown
// and can be enormous, the consumer has a hard output budget, and repeated
// exploration of the same subtree must be cheap. The package splits the
// problem across five cooperating parts:
//
//   - Correlator: turns the fire-and-forget command channel into a blocking
//     call, one in flight per connection, with a per-call deadline.
//   - Planner: picks a browse depth, or rejects caller-supplied depths that
//     would provably overflow the budget.
//   - Explorer: depth-first budget-aware recursive exploration of a subtree.
//   - Cache: full unpaginated result sets with TTL expiry and a byte ceiling.
//   - Paginator: bounded views over a full result with continuation offsets.
//
// Service wires the parts together and is the only type most callers need.
package browse
