package snowflake

import (
	"context"
	"database/sql"

	"github.com/ryanwith/melchi/internal/warehouse"
)

// batchSize bounds how many rows accumulate into one warehouse.Batch
// before Next() hands it back to the caller, keeping memory bounded
// for wide stream deltas or full-table extraction.
const batchSize = 5000

// rowsBatchSeq adapts a *sql.Rows cursor into a warehouse.BatchSeq,
// pulling up to batchSize rows per Next() call so the coordinator
// never holds an entire table in memory (spec.md §9 "lazy batches").
type rowsBatchSeq struct {
	rows    *sql.Rows
	columns []string
	scratch []interface{}
	current warehouse.Batch
	err     error
	done    bool
}

func newRowsBatchSeq(rows *sql.Rows) (*rowsBatchSeq, error) {
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	return &rowsBatchSeq{rows: rows, columns: cols, scratch: make([]interface{}, len(cols))}, nil
}

func (s *rowsBatchSeq) Next(ctx context.Context) bool {
	if s.done {
		return false
	}
	var rowsOut [][]interface{}
	for len(rowsOut) < batchSize {
		if !s.rows.Next() {
			s.done = true
			if err := s.rows.Err(); err != nil {
				s.err = err
			}
			break
		}
		ptrs := make([]interface{}, len(s.columns))
		for i := range ptrs {
			ptrs[i] = &s.scratch[i]
		}
		if err := s.rows.Scan(ptrs...); err != nil {
			s.err = err
			s.done = true
			break
		}
		row := make([]interface{}, len(s.columns))
		copy(row, s.scratch)
		rowsOut = append(rowsOut, row)
	}
	if len(rowsOut) == 0 {
		return false
	}
	s.current = warehouse.Batch{Columns: s.columns, Rows: rowsOut}
	return true
}

func (s *rowsBatchSeq) Batch() warehouse.Batch { return s.current }
func (s *rowsBatchSeq) Err() error             { return s.err }
func (s *rowsBatchSeq) Close() error           { return s.rows.Close() }

// drainRows reads every remaining row of rows into a single Batch, for
// callers (ExecuteQuery) that want a whole result set rather than a
// lazy sequence.
func drainRows(rows *sql.Rows) (*warehouse.Batch, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	scratch := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range ptrs {
		ptrs[i] = &scratch[i]
	}
	batch := &warehouse.Batch{Columns: cols}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]interface{}, len(cols))
		copy(row, scratch)
		batch.Rows = append(batch.Rows, row)
	}
	return batch, rows.Err()
}
