package store

import (
	"database/sql"
	"fmt"
)

// CommitRun inserts the run and all buffered data from a RunBatch into
// SQLite within a single transaction. Fake (negative) IDs are remapped to
// real IDs and every function reference within the batch is rewritten.
//
// Insert order respects FK dependencies:
//  1. Run
//  2. Functions (depend on run_id)
//  3. Calls (depend on function_id)
//  4. Signatures (depend on function_id)
func (s *Store) CommitRun(batch *RunBatch) error {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit run: begin: %w", err)
	}
	defer tx.Rollback()

	run := batch.Run
	if run.Status == "" {
		run.Status = StatusOK
	}
	if err := insertRunTx(tx, &run); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}

	fakeToReal := make(map[int64]int64)

	// 1. Functions
	for _, fn := range batch.Functions {
		fn.RunID = run.ID
		realID, err := insertFunctionTx(tx, &fn)
		if err != nil {
			return fmt.Errorf("commit run: function %q: %w", fn.Name, err)
		}
		fakeToReal[fn.ID] = realID
	}

	// 2. Calls
	for _, c := range batch.Calls {
		if c.FunctionID < 0 {
			realID, ok := fakeToReal[c.FunctionID]
			if !ok {
				return fmt.Errorf("commit run: call has function_id=%d not in fakeToReal map (have %d functions)", c.FunctionID, len(batch.Functions))
			}
			c.FunctionID = realID
		}
		if _, err := insertCallTx(tx, &c); err != nil {
			return fmt.Errorf("commit run: call %d: %w", c.Seq, err)
		}
	}

	// 3. Signatures
	if run.Status != StatusFailed {
		for _, sig := range batch.Signatures {
			if sig.FunctionID < 0 {
				realID, ok := fakeToReal[sig.FunctionID]
				if !ok {
					return fmt.Errorf("commit run: signature has function_id=%d not in fakeToReal map (have %d functions)", sig.FunctionID, len(batch.Functions))
				}
				sig.FunctionID = realID
			}
			if _, err := insertSignatureTx(tx, &sig); err != nil {
				return fmt.Errorf("commit run: signature %q: %w", sig.Declaration, err)
			}
		}
	}

	return tx.Commit()
}

// --- Insert helpers ---
// These back both CommitRun (with a *sql.Tx) and the direct Store inserts
// (with the *sql.DB).

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertRunTx(tx execer, r *Run) error {
	_, err := tx.Exec(
		`INSERT INTO runs (id, strategy, source, status, error, events, calls, functions, pending, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Strategy, r.Source, r.Status, r.Error,
		r.Events, r.Calls, r.Functions, r.Pending, r.StartedAt, r.FinishedAt,
	)
	return err
}

func insertFunctionTx(tx execer, fn *Function) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO functions (run_id, name, file, ordinal) VALUES (?, ?, ?, ?)`,
		fn.RunID, fn.Name, fn.File, fn.Ordinal,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertCallTx(tx execer, c *Call) (int64, error) {
	args, err := marshalJSON(c.Args)
	if err != nil {
		return 0, fmt.Errorf("encode args: %w", err)
	}
	ret, err := marshalJSON(c.ReturnValue)
	if err != nil {
		return 0, fmt.Errorf("encode return value: %w", err)
	}
	res, err := tx.Exec(
		`INSERT INTO calls (function_id, seq, args, return_value) VALUES (?, ?, ?, ?)`,
		c.FunctionID, c.Seq, args, ret,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertSignatureTx(tx execer, sig *Signature) (int64, error) {
	argTypes, err := marshalJSON(sig.ArgTypes)
	if err != nil {
		return 0, fmt.Errorf("encode arg types: %w", err)
	}
	retTypes, err := marshalJSON(sig.ReturnTypes)
	if err != nil {
		return 0, fmt.Errorf("encode return types: %w", err)
	}
	res, err := tx.Exec(
		`INSERT INTO signatures (function_id, arg_types, return_types, declaration, signature_hash)
		 VALUES (?, ?, ?, ?, ?)`,
		sig.FunctionID, argTypes, retTypes, sig.Declaration, sig.SignatureHash,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
