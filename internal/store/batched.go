package store

import "sync"

// RunBatch buffers one run's inserts in memory using fake (negative) IDs.
// Deduction workers write to it concurrently; CommitRun later persists the
// whole run in a single transaction.
//
// Thread safety: the mutex protects fake ID allocation and slice appends.
type RunBatch struct {
	Run Run

	mu         sync.Mutex
	Functions  []Function
	Calls      []Call
	Signatures []Signature

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *RunBatch satisfies DataStore.
var _ DataStore = (*RunBatch)(nil)

// NewRunBatch creates an empty batch for run.
func NewRunBatch(run Run) *RunBatch {
	return &RunBatch{Run: run, nextFakeID: -1}
}

func (b *RunBatch) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *RunBatch) InsertFunction(fn *Function) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	fn.ID = fakeID
	fn.RunID = b.Run.ID
	b.Functions = append(b.Functions, *fn)
	return fakeID, nil
}

func (b *RunBatch) InsertCall(c *Call) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	c.ID = fakeID
	b.Calls = append(b.Calls, *c)
	return fakeID, nil
}

func (b *RunBatch) InsertSignature(sig *Signature) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	sig.ID = fakeID
	b.Signatures = append(b.Signatures, *sig)
	return fakeID, nil
}

// Fail marks the run failed and drops any buffered signatures so that a
// failed run never records partial declarations.
func (b *RunBatch) Fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Run.Status = StatusFailed
	if err != nil {
		b.Run.Error = err.Error()
	}
	b.Signatures = nil
}
