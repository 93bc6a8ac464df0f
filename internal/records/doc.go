// Package records provides an in-memory record store with all-or-nothing
// batch publishing. Callers stage a batch privately and hand it over as one
// Publish call, so records of concurrent transactions never mix and a batch
// abandoned before Publish leaves no trace in the store.
//
// Capacity handling happens only during Publish. When the committed records
// plus the batch would exceed the configured maximum, Publish rejects the
// whole batch and leaves the store untouched.
//
// The store serialises all access through one internal lock and is safe for
// concurrent use.
package records
