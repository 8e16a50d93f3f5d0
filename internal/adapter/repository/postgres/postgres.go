package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/short-link/internal/entity"
)

const uniqueViolationErrCode = "23505"

func isUniqueViolationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.SQLState() == uniqueViolationErrCode
}

const linkColumns = `code, original_url, visit_count, created_at, last_accessed_at`

type linkDB struct {
	Code           string       `db:"code"`
	OriginalURL    string       `db:"original_url"`
	VisitCount     int64        `db:"visit_count"`
	CreatedAt      time.Time    `db:"created_at"`
	LastAccessedAt sql.NullTime `db:"last_accessed_at"`
}

func (l *linkDB) toEntity() *entity.ShortLink {
	link := &entity.ShortLink{
		Code:        l.Code,
		OriginalURL: l.OriginalURL,
		VisitCount:  l.VisitCount,
		CreatedAt:   l.CreatedAt.UTC(),
	}

	if l.LastAccessedAt.Valid {
		t := l.LastAccessedAt.Time.UTC()
		link.LastAccessedAt = &t
	}

	return link
}

// LinkRepository keeps short links in the short_links table.
// The UNIQUE constraint on code makes Save an atomic insert-if-absent.
type LinkRepository struct {
	db *sqlx.DB
}

func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

func (r *LinkRepository) Save(ctx context.Context, code, originalURL string) (*entity.ShortLink, error) {
	const op = "adapter.repository.postgres.LinkRepository.Save"
	const query = `INSERT INTO short_links(code, original_url) VALUES ($1, $2) RETURNING ` + linkColumns

	var link linkDB

	if err := r.db.GetContext(ctx, &link, query, code, originalURL); err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to insert into short_links table: %w", op, err)
	}

	return link.toEntity(), nil
}

func (r *LinkRepository) RetrieveByCode(ctx context.Context, code string) (*entity.ShortLink, error) {
	const op = "adapter.repository.postgres.LinkRepository.RetrieveByCode"
	const query = `SELECT ` + linkColumns + ` FROM short_links WHERE code = $1`

	var link linkDB

	if err := r.db.GetContext(ctx, &link, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from short_links table: %w", op, err)
	}

	return link.toEntity(), nil
}

func (r *LinkRepository) RetrieveAndUpdateStats(ctx context.Context, code string) (*entity.ShortLink, error) {
	const op = "adapter.repository.postgres.LinkRepository.RetrieveAndUpdateStats"
	const query = `UPDATE short_links
		SET visit_count = visit_count + 1, last_accessed_at = NOW()
		WHERE code = $1
		RETURNING ` + linkColumns

	var link linkDB

	if err := r.db.GetContext(ctx, &link, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to update short_links table row: %w", op, err)
	}

	return link.toEntity(), nil
}

func (r *LinkRepository) Remove(ctx context.Context, code string) (*entity.ShortLink, error) {
	const op = "adapter.repository.postgres.LinkRepository.Remove"
	const query = `DELETE FROM short_links WHERE code = $1 RETURNING ` + linkColumns

	var link linkDB

	if err := r.db.GetContext(ctx, &link, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to delete from short_links table: %w", op, err)
	}

	return link.toEntity(), nil
}
