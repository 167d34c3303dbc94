package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/eqb/internal/ir"
	"github.com/roach88/eqb/schema"
)

// SchemaRecord describes a stored schema snapshot.
type SchemaRecord struct {
	Seq    int64     `json:"seq"`
	ID     uuid.UUID `json:"id"`
	Hash   string    `json:"hash"`
	Source string    `json:"source"`
	Types  int       `json:"types"`
}

// PutSchema stores the canonical snapshot of info. source names where the
// schema came from, usually a file path.
//
// Returns the record and whether a new row was inserted. A snapshot whose
// hash is already stored is not written again; the existing record is
// returned with inserted=false.
func (s *Store) PutSchema(ctx context.Context, source string, info *schema.Info) (rec SchemaRecord, inserted bool, err error) {
	data, hash, err := ir.SchemaSnapshot(info)
	if err != nil {
		return SchemaRecord{}, false, fmt.Errorf("put schema: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return SchemaRecord{}, false, fmt.Errorf("put schema: new id: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SchemaRecord{}, false, fmt.Errorf("put schema: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO schema_snapshots (id, hash, source, snapshot)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, id.String(), hash, source, string(data))
	if err != nil {
		return SchemaRecord{}, false, fmt.Errorf("put schema: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return SchemaRecord{}, false, fmt.Errorf("put schema: rows affected: %w", err)
	}

	rec, _, err = scanSchema(tx.QueryRowContext(ctx, `
		SELECT seq, id, hash, source, snapshot
		FROM schema_snapshots
		WHERE hash = ?
	`, hash))
	if err != nil {
		return SchemaRecord{}, false, fmt.Errorf("put schema: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return SchemaRecord{}, false, fmt.Errorf("put schema: commit: %w", err)
	}
	return rec, affected > 0, nil
}

// LatestSchema returns the most recently imported snapshot.
// Returns ErrNotFound when no snapshot is stored.
func (s *Store) LatestSchema(ctx context.Context) (*schema.Info, SchemaRecord, error) {
	rec, info, err := scanSchema(s.db.QueryRowContext(ctx, `
		SELECT seq, id, hash, source, snapshot
		FROM schema_snapshots
		ORDER BY seq DESC
		LIMIT 1
	`))
	if err != nil {
		return nil, SchemaRecord{}, fmt.Errorf("latest schema: %w", err)
	}
	return info, rec, nil
}

// SchemaByHash returns the snapshot stored under hash.
// Returns ErrNotFound when no snapshot has that hash.
func (s *Store) SchemaByHash(ctx context.Context, hash string) (*schema.Info, SchemaRecord, error) {
	rec, info, err := scanSchema(s.db.QueryRowContext(ctx, `
		SELECT seq, id, hash, source, snapshot
		FROM schema_snapshots
		WHERE hash = ?
	`, hash))
	if err != nil {
		return nil, SchemaRecord{}, fmt.Errorf("schema %s: %w", hash, err)
	}
	return info, rec, nil
}

// ListSchemas returns every stored snapshot in import order.
// Returns an empty slice (not nil) when none are stored.
func (s *Store) ListSchemas(ctx context.Context) ([]SchemaRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, hash, source, snapshot
		FROM schema_snapshots
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query schemas: %w", err)
	}
	defer rows.Close()

	records := []SchemaRecord{}
	for rows.Next() {
		rec, _, err := scanSchema(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schemas: %w", err)
	}
	return records, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchema(row rowScanner) (SchemaRecord, *schema.Info, error) {
	var (
		rec      SchemaRecord
		id       string
		snapshot string
	)
	if err := row.Scan(&rec.Seq, &id, &rec.Hash, &rec.Source, &snapshot); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SchemaRecord{}, nil, ErrNotFound
		}
		return SchemaRecord{}, nil, fmt.Errorf("scan schema: %w", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return SchemaRecord{}, nil, fmt.Errorf("scan schema: id: %w", err)
	}
	rec.ID = parsed

	var info schema.Info
	if err := json.Unmarshal([]byte(snapshot), &info); err != nil {
		return SchemaRecord{}, nil, fmt.Errorf("scan schema %s: %w", rec.Hash, err)
	}
	rec.Types = len(info.Types)
	return rec, &info, nil
}
