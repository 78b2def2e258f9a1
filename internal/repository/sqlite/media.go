package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"media-upload-go/internal/domain"
	"media-upload-go/internal/repository"
)

// MediaRepository implements repository.MediaRepository on SQLite.
type MediaRepository struct {
	db *sqlx.DB
}

var _ repository.MediaRepository = (*MediaRepository)(nil)

// NewMediaRepository returns a repository backed by db.
func NewMediaRepository(db *sqlx.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

type mediaRow struct {
	ID             int64          `db:"id"`
	Category       string         `db:"category"`
	OwnerRef       sql.NullString `db:"owner_ref"`
	OriginalName   string         `db:"original_name"`
	StoredPath     string         `db:"stored_path"`
	URL            string         `db:"url"`
	OriginalSize   int64          `db:"original_size"`
	CompressedSize int64          `db:"compressed_size"`
	Format         sql.NullString `db:"format"`
	Width          int            `db:"width"`
	Height         int            `db:"height"`
	Failed         bool           `db:"failed"`
	ErrorMessage   sql.NullString `db:"error_message"`
	CreatedAt      int64          `db:"created_at"`
}

// Create inserts m and sets its ID and CreatedAt.
func (r *MediaRepository) Create(ctx context.Context, m *domain.Media) (int64, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO media (category, owner_ref, original_name, stored_path, url,
		                   original_size, compressed_size, format, width, height,
		                   failed, error_message, created_at)
		VALUES (:category, :owner_ref, :original_name, :stored_path, :url,
		        :original_size, :compressed_size, :format, :width, :height,
		        :failed, :error_message, :created_at)
	`

	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"category":        m.Category,
		"owner_ref":       nullString(m.OwnerRef),
		"original_name":   m.OriginalName,
		"stored_path":     m.StoredPath,
		"url":             m.URL,
		"original_size":   m.OriginalSize,
		"compressed_size": m.CompressedSize,
		"format":          nullString(m.Format),
		"width":           m.Width,
		"height":          m.Height,
		"failed":          m.Failed,
		"error_message":   nullString(m.ErrorMessage),
		"created_at":      m.CreatedAt.Unix(),
	})
	if err != nil {
		return 0, fmt.Errorf("insert media: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	m.ID = id
	return id, nil
}

// GetByID returns one entry or repository.ErrNotFound.
func (r *MediaRepository) GetByID(ctx context.Context, id int64) (*domain.Media, error) {
	var row mediaRow
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM media WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", repository.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get media: %w", err)
	}
	return rowToDomain(&row), nil
}

// List returns the newest entries first.
func (r *MediaRepository) List(ctx context.Context, category string, limit int) ([]*domain.Media, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []mediaRow
	var err error
	if category == "" {
		err = r.db.SelectContext(ctx, &rows,
			`SELECT * FROM media ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	} else {
		err = r.db.SelectContext(ctx, &rows,
			`SELECT * FROM media WHERE category = ? ORDER BY created_at DESC, id DESC LIMIT ?`, category, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}

	out := make([]*domain.Media, 0, len(rows))
	for i := range rows {
		out = append(out, rowToDomain(&rows[i]))
	}
	return out, nil
}

// Delete removes one entry or returns repository.ErrNotFound.
func (r *MediaRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM media WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", repository.ErrNotFound, id)
	}
	return nil
}

// Totals sums sizes over every entry.
func (r *MediaRepository) Totals(ctx context.Context) (domain.Totals, error) {
	var t domain.Totals
	query := `
		SELECT COUNT(*) AS files,
		       COALESCE(SUM(failed), 0) AS failed,
		       COALESCE(SUM(original_size), 0) AS original_size,
		       COALESCE(SUM(compressed_size), 0) AS compressed_size
		FROM media
	`
	if err := r.db.GetContext(ctx, &t, query); err != nil {
		return domain.Totals{}, fmt.Errorf("media totals: %w", err)
	}
	return t, nil
}

func rowToDomain(row *mediaRow) *domain.Media {
	return &domain.Media{
		ID:             row.ID,
		Category:       row.Category,
		OwnerRef:       row.OwnerRef.String,
		OriginalName:   row.OriginalName,
		StoredPath:     row.StoredPath,
		URL:            row.URL,
		OriginalSize:   row.OriginalSize,
		CompressedSize: row.CompressedSize,
		Format:         row.Format.String,
		Width:          row.Width,
		Height:         row.Height,
		Failed:         row.Failed,
		ErrorMessage:   row.ErrorMessage.String,
		CreatedAt:      time.Unix(row.CreatedAt, 0),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
