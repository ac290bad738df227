package receipts

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"visaintake/pkg/platform/sentinel"
)

const table = "submission_receipts"

var columns = []string{
	"id", "session_id", "target", "visa_id", "sub_traveler_id", "traveler_count",
	"attachment_count", "payload_digest", "request_id", "client_ip", "client_platform",
	"submitted_at",
}

const uniqueViolation = "23505"

// PostgresStore persists receipts in the submission_receipts table.
type PostgresStore struct {
	pool *pgxpool.Pool
	sq   squirrel.StatementBuilderType
}

// NewPostgresStore returns a store over pool. Migrations must already be applied.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool: pool,
		sq:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (s *PostgresStore) Save(ctx context.Context, r Receipt) error {
	query, args, err := s.sq.Insert(table).
		Columns(columns...).
		Values(r.ID, r.SessionID, r.Target, r.VisaID, r.SubTravelerID, r.TravelerCount,
			r.AttachmentCount, r.PayloadDigest, r.RequestID, r.ClientIP, r.ClientPlatform,
			r.SubmittedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert receipt: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Receipt, error) {
	query, args, err := s.sq.Select(columns...).From(table).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return Receipt{}, fmt.Errorf("build select receipt: %w", err)
	}

	r, err := scan(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Receipt{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Receipt{}, fmt.Errorf("select receipt: %w", err)
	}
	return r, nil
}

// ListByVisa returns the receipts for visaID, newest first.
func (s *PostgresStore) ListByVisa(ctx context.Context, visaID string) ([]Receipt, error) {
	query, args, err := s.sq.Select(columns...).
		From(table).
		Where(squirrel.Eq{"visa_id": visaID}).
		OrderBy("submitted_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list receipts: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var out []Receipt
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scan(row pgx.Row) (Receipt, error) {
	var r Receipt
	err := row.Scan(&r.ID, &r.SessionID, &r.Target, &r.VisaID, &r.SubTravelerID, &r.TravelerCount,
		&r.AttachmentCount, &r.PayloadDigest, &r.RequestID, &r.ClientIP, &r.ClientPlatform,
		&r.SubmittedAt)
	return r, err
}
