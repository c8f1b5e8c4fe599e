package store

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBatch_AssignsNegativeIDs(t *testing.T) {
	t.Parallel()
	batch := NewRunBatch(Run{ID: "r"})

	id1, err := batch.InsertFunction(&Function{Name: "a", File: "x.js"})
	require.NoError(t, err)
	assert.Negative(t, id1, "batched IDs should be negative")

	id2, err := batch.InsertCall(&Call{FunctionID: id1})
	require.NoError(t, err)
	assert.Negative(t, id2)
	assert.NotEqual(t, id1, id2)

	assert.Equal(t, "r", batch.Functions[0].RunID)
}

func TestRunBatch_ConcurrentInserts(t *testing.T) {
	t.Parallel()
	batch := NewRunBatch(Run{ID: "r"})

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := batch.InsertFunction(&Function{Name: "f", File: "x.js", Ordinal: i})
			assert.NoError(t, err)
			_, err = batch.InsertSignature(&Signature{FunctionID: id})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, batch.Functions, 20)
	assert.Len(t, batch.Signatures, 20)
	seen := make(map[int64]bool)
	for _, fn := range batch.Functions {
		assert.False(t, seen[fn.ID], "fake IDs must be unique")
		seen[fn.ID] = true
	}
}

func TestRunBatch_FailDropsSignatures(t *testing.T) {
	t.Parallel()
	batch := NewRunBatch(Run{ID: "r"})
	id, err := batch.InsertFunction(&Function{Name: "f", File: "x.js"})
	require.NoError(t, err)
	_, err = batch.InsertSignature(&Signature{FunctionID: id})
	require.NoError(t, err)

	batch.Fail(errors.New("boom"))
	assert.Equal(t, StatusFailed, batch.Run.Status)
	assert.Equal(t, "boom", batch.Run.Error)
	assert.Empty(t, batch.Signatures)
	assert.Len(t, batch.Functions, 1)
}
