package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT        NOT NULL,
	doc_id     TEXT        NOT NULL,
	data       JSONB       NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, doc_id)
);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents (collection, (data->>'status'));
`

// PostgresStore keeps every collection in one JSONB table.
// A write set runs in a single SQL transaction; the transaction's now() is the server timestamp.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the documents table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure documents schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) NewID() string { return uuid.NewString() }

func (s *PostgresStore) Get(ctx context.Context, ref Ref) (*Document, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND doc_id = $2`,
		ref.Collection, ref.ID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref.Path())
		}
		return nil, fmt.Errorf("failed to get document %s: %w", ref.Path(), err)
	}
	f, err := decodeData(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", ref.Path(), err)
	}
	return &Document{Ref: ref, Fields: f}, nil
}

func (s *PostgresStore) QueryByField(ctx context.Context, collection, field string, equals any) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, data FROM documents
		 WHERE collection = $1 AND data->>$2 = $3
		 ORDER BY doc_id`,
		collection, field, textOf(equals),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", collection, field, err)
	}
	defer rows.Close()
	return scanDocuments(rows, collection)
}

func (s *PostgresStore) QueryOrderedLimit(ctx context.Context, collection, orderBy string, desc bool, limit int) ([]Document, error) {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	q := fmt.Sprintf(
		`SELECT doc_id, data FROM documents
		 WHERE collection = $1 AND data->>$2 IS NOT NULL
		 ORDER BY data->>$2 %s, doc_id`, dir)
	args := []any{collection, orderBy}
	if limit > 0 {
		q += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s ordered by %s: %w", collection, orderBy, err)
	}
	defer rows.Close()
	return scanDocuments(rows, collection)
}

func (s *PostgresStore) AtomicWrite(ctx context.Context, ops []WriteOp) error {
	for _, op := range ops {
		if err := op.validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var commitTime time.Time
	if needsServerTime(ops) {
		if err := tx.QueryRowContext(ctx, `SELECT now()`).Scan(&commitTime); err != nil {
			return fmt.Errorf("failed to read server time: %w", err)
		}
	}

	for i, op := range ops {
		if err := applyOp(ctx, tx, op, commitTime); err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func applyOp(ctx context.Context, tx *sql.Tx, op WriteOp, commitTime time.Time) error {
	patch, deletes, err := encodeFields(op.Fields, commitTime)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", op.Ref.Path(), err)
	}

	switch op.Kind {
	case OpSet:
		_, err := tx.ExecContext(ctx,
			`INSERT INTO documents (collection, doc_id, data)
			 VALUES ($1, $2, $3::jsonb)
			 ON CONFLICT (collection, doc_id)
			 DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
			op.Ref.Collection, op.Ref.ID, patch,
		)
		if err != nil {
			return fmt.Errorf("failed to set %s: %w", op.Ref.Path(), err)
		}
		return nil

	case OpCreate:
		res, err := tx.ExecContext(ctx,
			`INSERT INTO documents (collection, doc_id, data)
			 VALUES ($1, $2, $3::jsonb)
			 ON CONFLICT (collection, doc_id) DO NOTHING`,
			op.Ref.Collection, op.Ref.ID, patch,
		)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", op.Ref.Path(), err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, op.Ref.Path())
		}
		return nil

	case OpUpdate:
		var b strings.Builder
		b.WriteString(`UPDATE documents SET data = (data - $3::text[]) || $4::jsonb, updated_at = now()
			 WHERE collection = $1 AND doc_id = $2`)
		args := []any{op.Ref.Collection, op.Ref.ID, pq.Array(deletes), patch}
		for _, p := range op.Preconditions {
			args = append(args, p.Field)
			if p.Absent {
				fmt.Fprintf(&b, ` AND data->>$%d IS NULL`, len(args))
				continue
			}
			fmt.Fprintf(&b, ` AND data->>$%d = $%d`, len(args), len(args)+1)
			args = append(args, textOf(p.Equals))
		}

		res, err := tx.ExecContext(ctx, b.String(), args...)
		if err != nil {
			return fmt.Errorf("failed to update %s: %w", op.Ref.Path(), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected for %s: %w", op.Ref.Path(), err)
		}
		if n > 0 {
			return nil
		}
		return missOrPrecondition(ctx, tx, op.Ref)
	}
	return fmt.Errorf("unsupported op kind %d", op.Kind)
}

// missOrPrecondition explains an update that matched no row.
func missOrPrecondition(ctx context.Context, tx *sql.Tx, ref Ref) error {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE collection = $1 AND doc_id = $2`,
		ref.Collection, ref.ID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, ref.Path())
	}
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", ref.Path(), err)
	}
	return fmt.Errorf("%w: %s", ErrPreconditionFailed, ref.Path())
}

// encodeFields returns the JSON patch and the keys to delete.
func encodeFields(f Fields, commitTime time.Time) (string, []string, error) {
	patch := map[string]any{}
	deletes := []string{}
	for k, v := range f {
		switch v {
		case DeleteField:
			deletes = append(deletes, k)
			continue
		case ServerTimestamp:
			patch[k] = commitTime.UTC().Format(TimeLayout)
			continue
		}
		patch[k] = encodeValue(v)
	}
	b, err := json.Marshal(patch)
	if err != nil {
		return "", nil, err
	}
	return string(b), deletes, nil
}

func encodeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(TimeLayout)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(TimeLayout)
	case Fields:
		return encodeMap(t)
	case map[string]any:
		return encodeMap(t)
	}
	return v
}

func encodeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = encodeValue(v)
	}
	return out
}

func decodeData(raw []byte) (Fields, error) {
	f := Fields{}
	if len(raw) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return f, nil
}

func scanDocuments(rows *sql.Rows, collection string) ([]Document, error) {
	out := []Document{}
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		f, err := decodeData(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
		}
		out = append(out, Document{Ref: Doc(collection, id), Fields: f})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return out, nil
}
