package store

// DataStore is the interface for recording a run's contents. Both Store
// (direct SQLite) and RunBatch (in-memory buffering for parallel deduction)
// implement this interface.
type DataStore interface {
	// Inserts return the assigned ID.
	InsertFunction(fn *Function) (int64, error)
	InsertCall(c *Call) (int64, error)
	InsertSignature(sig *Signature) (int64, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
