package store

import (
	"database/sql"
	"fmt"
)

// --- Direct inserts ---

func (s *Store) InsertRun(r *Run) error {
	if r.Status == "" {
		r.Status = StatusOK
	}
	if err := insertRunTx(s.db, r); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *Store) InsertFunction(fn *Function) (int64, error) {
	id, err := insertFunctionTx(s.db, fn)
	if err != nil {
		return 0, fmt.Errorf("insert function: %w", err)
	}
	fn.ID = id
	return id, nil
}

func (s *Store) InsertCall(c *Call) (int64, error) {
	id, err := insertCallTx(s.db, c)
	if err != nil {
		return 0, fmt.Errorf("insert call: %w", err)
	}
	c.ID = id
	return id, nil
}

func (s *Store) InsertSignature(sig *Signature) (int64, error) {
	id, err := insertSignatureTx(s.db, sig)
	if err != nil {
		return 0, fmt.Errorf("insert signature: %w", err)
	}
	sig.ID = id
	return id, nil
}

// --- Run queries ---

const runCols = `id, strategy, source, status, error, events, calls, functions, pending, started_at, finished_at`

func scanRun(scanner interface{ Scan(...any) error }) (*Run, error) {
	r := &Run{}
	var source, errText sql.NullString
	err := scanner.Scan(
		&r.ID, &r.Strategy, &source, &r.Status, &errText,
		&r.Events, &r.Calls, &r.Functions, &r.Pending, &r.StartedAt, &r.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Source = source.String
	r.Error = errText.String
	return r, nil
}

// Runs returns the most recent runs first. A non-positive limit returns all.
func (s *Store) Runs(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		"SELECT "+runCols+" FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("runs: %w", err)
	}
	defer rows.Close()
	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunByID returns nil, nil when no run has that ID.
func (s *Store) RunByID(id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow("SELECT "+runCols+" FROM runs WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("run by id: %w", err)
	}
	return r, nil
}

// --- Function and call queries ---

// FunctionsByRun returns a run's functions in first-seen order.
func (s *Store) FunctionsByRun(runID string) ([]*Function, error) {
	rows, err := s.db.Query(
		"SELECT id, run_id, name, file, ordinal FROM functions WHERE run_id = ? ORDER BY ordinal", runID,
	)
	if err != nil {
		return nil, fmt.Errorf("functions by run: %w", err)
	}
	defer rows.Close()
	var fns []*Function
	for rows.Next() {
		fn := &Function{}
		if err := rows.Scan(&fn.ID, &fn.RunID, &fn.Name, &fn.File, &fn.Ordinal); err != nil {
			return nil, fmt.Errorf("scan function: %w", err)
		}
		fns = append(fns, fn)
	}
	return fns, rows.Err()
}

// CallsByFunction returns a function's calls in completion order.
func (s *Store) CallsByFunction(functionID int64) ([]*Call, error) {
	rows, err := s.db.Query(
		"SELECT id, function_id, seq, args, return_value FROM calls WHERE function_id = ? ORDER BY seq", functionID,
	)
	if err != nil {
		return nil, fmt.Errorf("calls by function: %w", err)
	}
	defer rows.Close()
	var calls []*Call
	for rows.Next() {
		c := &Call{}
		var args, ret sql.NullString
		if err := rows.Scan(&c.ID, &c.FunctionID, &c.Seq, &args, &ret); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		if err := unmarshalJSON(args.String, &c.Args); err != nil {
			return nil, fmt.Errorf("decode args of call %d: %w", c.ID, err)
		}
		if err := unmarshalJSON(ret.String, &c.ReturnValue); err != nil {
			return nil, fmt.Errorf("decode return value of call %d: %w", c.ID, err)
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// --- Signature queries ---

// SignatureByFunction returns nil, nil when the function has no signature.
func (s *Store) SignatureByFunction(functionID int64) (*Signature, error) {
	sig := &Signature{}
	var argTypes, retTypes string
	err := s.db.QueryRow(
		`SELECT id, function_id, arg_types, return_types, declaration, signature_hash
		 FROM signatures WHERE function_id = ?`, functionID,
	).Scan(&sig.ID, &sig.FunctionID, &argTypes, &retTypes, &sig.Declaration, &sig.SignatureHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("signature by function: %w", err)
	}
	if err := unmarshalJSON(argTypes, &sig.ArgTypes); err != nil {
		return nil, fmt.Errorf("decode arg types: %w", err)
	}
	if err := unmarshalJSON(retTypes, &sig.ReturnTypes); err != nil {
		return nil, fmt.Errorf("decode return types: %w", err)
	}
	return sig, nil
}

// Declarations returns a run's rendered declarations grouped by file. Files
// appear in the order their first function was seen; declarations within a
// file keep first-seen order.
func (s *Store) Declarations(runID string) ([]FileDeclarations, error) {
	rows, err := s.db.Query(
		`SELECT f.file, f.name, sg.declaration, sg.signature_hash
		 FROM functions f
		 JOIN signatures sg ON sg.function_id = f.id
		 WHERE f.run_id = ?
		 ORDER BY f.ordinal`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("declarations: %w", err)
	}
	defer rows.Close()

	var out []FileDeclarations
	index := make(map[string]int)
	for rows.Next() {
		var file string
		var d Declaration
		if err := rows.Scan(&file, &d.Name, &d.Text, &d.SignatureHash); err != nil {
			return nil, fmt.Errorf("scan declaration: %w", err)
		}
		i, ok := index[file]
		if !ok {
			i = len(out)
			index[file] = i
			out = append(out, FileDeclarations{File: file})
		}
		out[i].Declarations = append(out[i].Declarations, d)
	}
	return out, rows.Err()
}

// SignatureHashes returns the signature hash of every function in a run.
func (s *Store) SignatureHashes(runID string) (map[FunctionKey]string, error) {
	rows, err := s.db.Query(
		`SELECT f.name, f.file, sg.signature_hash
		 FROM functions f
		 JOIN signatures sg ON sg.function_id = f.id
		 WHERE f.run_id = ?`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("signature hashes: %w", err)
	}
	defer rows.Close()
	hashes := make(map[FunctionKey]string)
	for rows.Next() {
		var k FunctionKey
		var h string
		if err := rows.Scan(&k.Name, &k.File, &h); err != nil {
			return nil, fmt.Errorf("scan signature hash: %w", err)
		}
		hashes[k] = h
	}
	return hashes, rows.Err()
}
