package dtsynth

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jward/dtsynth/internal/store"
)

// Record persists res as one run in a single transaction. source labels
// where the trace came from (a path or repository URI). When synthErr is
// non-nil the run is stored as failed with its calls but without
// signatures. It returns the run ID.
func (e *Engine) Record(source string, res *Result, synthErr error) (string, error) {
	if e.store == nil {
		return "", ErrNoStore
	}
	if res == nil {
		return "", fmt.Errorf("dtsynth: record: nil result")
	}

	batch := store.NewRunBatch(store.Run{
		ID:         res.RunID,
		Strategy:   res.Strategy,
		Source:     source,
		Status:     store.StatusOK,
		Events:     res.Events,
		Calls:      res.Calls,
		Functions:  len(res.Functions),
		Pending:    len(res.Pending),
		StartedAt:  res.StartedAt,
		FinishedAt: res.StartedAt.Add(res.Duration),
	})

	for ordinal, fn := range res.Functions {
		fnID, err := batch.InsertFunction(&store.Function{
			Name:    fn.ID.Name,
			File:    fn.ID.File,
			Ordinal: ordinal,
		})
		if err != nil {
			return "", fmt.Errorf("dtsynth: record: %w", err)
		}
		for seq, c := range fn.Calls {
			if _, err := batch.InsertCall(&store.Call{
				FunctionID:  fnID,
				Seq:         seq,
				Args:        c.Args,
				ReturnValue: c.ReturnValue,
			}); err != nil {
				return "", fmt.Errorf("dtsynth: record: %w", err)
			}
		}
		if fn.Signature == nil {
			continue
		}
		if _, err := batch.InsertSignature(e.storedSignature(fnID, fn)); err != nil {
			return "", fmt.Errorf("dtsynth: record: %w", err)
		}
	}
	if synthErr != nil {
		batch.Fail(synthErr)
	}

	if err := e.store.CommitRun(batch); err != nil {
		return "", fmt.Errorf("dtsynth: record: %w", err)
	}
	if err := e.store.SetMetadata(store.LastRunKey, res.RunID); err != nil {
		return "", fmt.Errorf("dtsynth: record: %w", err)
	}

	e.log.WithFields(logrus.Fields{
		"run":       res.RunID,
		"status":    batch.Run.Status,
		"functions": len(res.Functions),
	}).Info("recorded run")
	return res.RunID, nil
}

func (e *Engine) storedSignature(fnID int64, fn FunctionResult) *store.Signature {
	argTypes := make(map[int][]string, len(fn.Signature.ArgTypes))
	for pos, set := range fn.Signature.ArgTypes {
		argTypes[pos] = set.Names()
	}
	returnTypes := fn.Signature.ReturnTypes.Names()
	return &store.Signature{
		FunctionID:    fnID,
		ArgTypes:      argTypes,
		ReturnTypes:   returnTypes,
		Declaration:   e.render.Render(fn.Signature),
		SignatureHash: store.ComputeSignatureHash(fn.ID.Name, fn.ID.File, argTypes, returnTypes),
	}
}
