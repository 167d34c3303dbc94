package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/eqb/internal/ir"
)

// QueryRecord is a stored built query. Parameters holds the canonical JSON
// of the parameter map.
type QueryRecord struct {
	Seq        int64     `json:"seq"`
	ID         uuid.UUID `json:"id"`
	Hash       string    `json:"hash"`
	Text       string    `json:"text"`
	Parameters string    `json:"parameters"`
	SchemaHash string    `json:"schema_hash,omitempty"`
}

// PutQuery stores a built query. schemaHash names the snapshot the query was
// built against and may be empty; when set it must name a stored snapshot.
//
// Returns the record and whether a new row was inserted. A query whose
// content hash is already stored keeps its first record.
func (s *Store) PutQuery(ctx context.Context, q ir.QueryRecord, schemaHash string) (rec QueryRecord, inserted bool, err error) {
	hash, err := q.Hash()
	if err != nil {
		return QueryRecord{}, false, fmt.Errorf("put query: %w", err)
	}
	params, err := ir.MarshalCanonical(q.Object()["parameters"])
	if err != nil {
		return QueryRecord{}, false, fmt.Errorf("put query: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return QueryRecord{}, false, fmt.Errorf("put query: new id: %w", err)
	}

	var schemaRef sql.NullString
	if schemaHash != "" {
		schemaRef = sql.NullString{String: schemaHash, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return QueryRecord{}, false, fmt.Errorf("put query: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO queries (id, hash, text, parameters, schema_hash)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, id.String(), hash, q.Text, string(params), schemaRef)
	if err != nil {
		return QueryRecord{}, false, fmt.Errorf("put query: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return QueryRecord{}, false, fmt.Errorf("put query: rows affected: %w", err)
	}

	rec, err = scanQuery(tx.QueryRowContext(ctx, `
		SELECT seq, id, hash, text, parameters, schema_hash
		FROM queries
		WHERE hash = ?
	`, hash))
	if err != nil {
		return QueryRecord{}, false, fmt.Errorf("put query: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return QueryRecord{}, false, fmt.Errorf("put query: commit: %w", err)
	}
	return rec, affected > 0, nil
}

// QueryByHash returns the query stored under hash.
// Returns ErrNotFound when no query has that hash.
func (s *Store) QueryByHash(ctx context.Context, hash string) (QueryRecord, error) {
	rec, err := scanQuery(s.db.QueryRowContext(ctx, `
		SELECT seq, id, hash, text, parameters, schema_hash
		FROM queries
		WHERE hash = ?
	`, hash))
	if err != nil {
		return QueryRecord{}, fmt.Errorf("query %s: %w", hash, err)
	}
	return rec, nil
}

// ListQueries returns stored queries in insertion order. A non-empty
// schemaHash restricts the listing to queries built against that snapshot.
// Returns an empty slice (not nil) when none match.
func (s *Store) ListQueries(ctx context.Context, schemaHash string) ([]QueryRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if schemaHash == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT seq, id, hash, text, parameters, schema_hash
			FROM queries
			ORDER BY seq ASC, id COLLATE BINARY ASC
		`)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT seq, id, hash, text, parameters, schema_hash
			FROM queries
			WHERE schema_hash = ?
			ORDER BY seq ASC, id COLLATE BINARY ASC
		`, schemaHash)
	}
	if err != nil {
		return nil, fmt.Errorf("query queries: %w", err)
	}
	defer rows.Close()

	records := []QueryRecord{}
	for rows.Next() {
		rec, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queries: %w", err)
	}
	return records, nil
}

func scanQuery(row rowScanner) (QueryRecord, error) {
	var (
		rec        QueryRecord
		id         string
		schemaHash sql.NullString
	)
	if err := row.Scan(&rec.Seq, &id, &rec.Hash, &rec.Text, &rec.Parameters, &schemaHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return QueryRecord{}, ErrNotFound
		}
		return QueryRecord{}, fmt.Errorf("scan query: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return QueryRecord{}, fmt.Errorf("scan query: id: %w", err)
	}
	rec.ID = parsed
	rec.SchemaHash = schemaHash.String
	return rec, nil
}
