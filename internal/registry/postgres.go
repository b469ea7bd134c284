package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/dataport/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS import_export_files (
	id         BIGSERIAL PRIMARY KEY,
	filename   TEXT        NOT NULL,
	filepath   TEXT        NOT NULL,
	filetype   TEXT        NOT NULL CHECK (filetype IN ('import', 'export')),
	user_id    TEXT        NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS import_export_files_owner_idx
	ON import_export_files (user_id, filetype, created_at DESC);
`

const columns = `id, filename, filepath, filetype, user_id, created_at, updated_at`

// Postgres stores file records in the import_export_files table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an open pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the table and index if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create import_export_files: %w", err)
	}
	return nil
}

func (p *Postgres) Record(ctx context.Context, rec core.FileRecord) (core.FileRecord, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO import_export_files (filename, filepath, filetype, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+columns,
		rec.Filename, rec.Filepath, string(rec.Filetype), rec.OwnerID,
	)
	out, err := scanRecord(row)
	if err != nil {
		return core.FileRecord{}, fmt.Errorf("insert file record: %w", err)
	}
	return out, nil
}

func (p *Postgres) Get(ctx context.Context, id int64) (core.FileRecord, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+columns+` FROM import_export_files WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.FileRecord{}, core.ErrFileNotFound
	}
	if err != nil {
		return core.FileRecord{}, fmt.Errorf("get file record %d: %w", id, err)
	}
	return rec, nil
}

func (p *Postgres) List(ctx context.Context, ownerID string, ft core.FileType) ([]core.FileRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+columns+`
		FROM import_export_files
		WHERE user_id = $1 AND filetype = $2
		ORDER BY created_at DESC, id DESC`,
		ownerID, string(ft),
	)
	if err != nil {
		return nil, fmt.Errorf("list file records: %w", err)
	}
	defer rows.Close()

	out := make([]core.FileRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list file records: %w", err)
	}
	return out, nil
}

func (p *Postgres) Delete(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM import_export_files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete file record %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrFileNotFound
	}
	return nil
}

func scanRecord(row pgx.Row) (core.FileRecord, error) {
	var (
		rec      core.FileRecord
		filetype string
	)
	if err := row.Scan(&rec.ID, &rec.Filename, &rec.Filepath, &filetype, &rec.OwnerID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return core.FileRecord{}, err
	}
	rec.Filetype = core.FileType(filetype)
	return rec, nil
}
