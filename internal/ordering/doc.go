// Package ordering admits orders against limited menu portions and drives
// them through their lifecycle.
//
// Ledger owns the portion counter of every menu item. A reservation is a
// single conditional decrement in the store, so concurrent orders for the
// last portion are serialized by the database, never by process memory.
//
// Lifecycle creates orders, with reservation and insert in one transaction,
// and validates every status change against the transition table:
//
//	preparing -> ready | cancelled | completed
//	ready     -> completed
//	cancelled -> completed
//	completed -> (terminal)
//
// Staying in the current status is always accepted as a no-op.
package ordering
