package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solweekly/weekly-roundup/internal/domain"
)

// PostgresBackend is the local store used when DATABASE_URL is set.
// The schema lives in internal/db/migrations.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

func (b *PostgresBackend) Kind() string   { return KindPostgres }
func (b *PostgresBackend) Writable() bool { return true }

func (b *PostgresBackend) List(ctx context.Context) ([]string, error) {
	rows, err := b.pool.Query(ctx, `SELECT email FROM subscribers ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

func (b *PostgresBackend) Contains(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := b.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM subscribers WHERE email = $1)`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check subscriber: %w", err)
	}
	return exists, nil
}

func (b *PostgresBackend) Add(ctx context.Context, email string) error {
	tag, err := b.pool.Exec(ctx,
		`INSERT INTO subscribers (email) VALUES ($1) ON CONFLICT (email) DO NOTHING`, email)
	if err != nil {
		return fmt.Errorf("insert subscriber: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadySubscribed
	}
	return nil
}

func (b *PostgresBackend) Remove(ctx context.Context, email string) error {
	tag, err := b.pool.Exec(ctx, `DELETE FROM subscribers WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("delete subscriber: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubscriberNotFound
	}
	return nil
}

var _ Backend = (*PostgresBackend)(nil)
