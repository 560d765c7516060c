package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/callshield-core/internal/domain/call"
	apperrors "github.com/davidleathers/callshield-core/internal/domain/errors"
	"github.com/davidleathers/callshield-core/internal/domain/rules"
)

// RemoteStore persists per-user blocking state in PostgreSQL. Each of the
// three state parts is written independently so one failing part never
// corrupts the others.
type RemoteStore struct {
	pool *pgxpool.Pool
}

func NewRemoteStore(ctx context.Context, url string, maxConns int32) (*RemoteStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, apperrors.NewValidationError("INVALID_DSN", "invalid database url").WithCause(err)
	}
	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, apperrors.NewExternalError("postgres", "failed to create connection pool").WithCause(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.NewExternalError("postgres", "failed to reach database").WithCause(err)
	}
	return &RemoteStore{pool: pool}, nil
}

func (s *RemoteStore) Close() {
	s.pool.Close()
}

// UpsertSettings overwrites the user's block settings.
func (s *RemoteStore) UpsertSettings(ctx context.Context, userID uuid.UUID, settings rules.BlockSettings) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO block_settings (
			user_id, block_all, block_anonymous, block_no_valid_number,
			block_suspicious_ip, block_unknown_servers, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (user_id) DO UPDATE SET
			block_all = excluded.block_all,
			block_anonymous = excluded.block_anonymous,
			block_no_valid_number = excluded.block_no_valid_number,
			block_suspicious_ip = excluded.block_suspicious_ip,
			block_unknown_servers = excluded.block_unknown_servers,
			updated_at = now()`,
		userID, settings.BlockAll, settings.BlockAnonymous, settings.BlockNoValidNumber,
		settings.BlockSuspiciousIP, settings.BlockUnknownServers)
	if err != nil {
		return apperrors.NewExternalError("postgres", "failed to upsert settings").WithCause(err)
	}
	return nil
}

// ReplaceCustomList atomically swaps the user's custom list for the given
// entries.
func (s *RemoteStore) ReplaceCustomList(ctx context.Context, userID uuid.UUID, entries []*rules.Entry) error {
	return s.inTx(ctx, "replace custom list", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM custom_list WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clearing custom list: %w", err)
		}
		for _, e := range entries {
			if e == nil {
				continue
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO custom_list (
					id, user_id, value, type, is_blocked, notes, added_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				e.ID, userID, e.Value, string(e.Kind), e.Blocked, e.Notes, e.AddedAt); err != nil {
				return fmt.Errorf("inserting entry %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// ReplaceBlockedCalls atomically swaps the user's persisted call history.
// Callers cap the slice before handing it over.
func (s *RemoteStore) ReplaceBlockedCalls(ctx context.Context, userID uuid.UUID, events []call.Event) error {
	return s.inTx(ctx, "replace blocked calls", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM blocked_calls WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clearing blocked calls: %w", err)
		}
		for _, e := range events {
			if _, err := tx.Exec(ctx, `
				INSERT INTO blocked_calls (
					id, user_id, phone_number, source_address,
					occurred_at, reason, voip
				) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				e.ID, userID, e.PhoneNumber, e.SourceAddress,
				e.Timestamp, string(e.Reason), e.VoIP); err != nil {
				return fmt.Errorf("inserting call %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// FetchSettings returns the user's settings, or (nil, nil) when the user
// has never pushed any.
func (s *RemoteStore) FetchSettings(ctx context.Context, userID uuid.UUID) (*rules.BlockSettings, error) {
	var out rules.BlockSettings
	err := s.pool.QueryRow(ctx, `
		SELECT block_all, block_anonymous, block_no_valid_number,
		       block_suspicious_ip, block_unknown_servers
		FROM block_settings WHERE user_id = $1`, userID,
	).Scan(&out.BlockAll, &out.BlockAnonymous, &out.BlockNoValidNumber,
		&out.BlockSuspiciousIP, &out.BlockUnknownServers)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewExternalError("postgres", "failed to fetch settings").WithCause(err)
	}
	return &out, nil
}

// FetchCustomList returns all of the user's entries, newest first.
func (s *RemoteStore) FetchCustomList(ctx context.Context, userID uuid.UUID) ([]*rules.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, value, type, is_blocked, notes, added_at
		FROM custom_list WHERE user_id = $1
		ORDER BY added_at DESC`, userID)
	if err != nil {
		return nil, apperrors.NewExternalError("postgres", "failed to fetch custom list").WithCause(err)
	}
	defer rows.Close()

	var entries []*rules.Entry
	for rows.Next() {
		var (
			id, value, kind, notes string
			blocked                bool
			addedAt                int64
		)
		if err := rows.Scan(&id, &value, &kind, &blocked, &notes, &addedAt); err != nil {
			return nil, apperrors.NewExternalError("postgres", "failed to scan custom list row").WithCause(err)
		}
		entry, err := rules.RehydratedEntry(id, value, rules.EntryKind(kind), blocked, notes, addedAt)
		if err != nil {
			// A row that no longer satisfies entry validation is skipped
			// rather than poisoning the whole pull.
			continue
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewExternalError("postgres", "failed to iterate custom list").WithCause(err)
	}
	return entries, nil
}

// FetchBlockedCalls returns the user's call history, newest first, capped
// at limit.
func (s *RemoteStore) FetchBlockedCalls(ctx context.Context, userID uuid.UUID, limit int) ([]call.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, phone_number, source_address, occurred_at, reason, voip
		FROM blocked_calls WHERE user_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, apperrors.NewExternalError("postgres", "failed to fetch blocked calls").WithCause(err)
	}
	defer rows.Close()

	var events []call.Event
	for rows.Next() {
		var (
			e      call.Event
			reason string
		)
		if err := rows.Scan(&e.ID, &e.PhoneNumber, &e.SourceAddress,
			&e.Timestamp, &reason, &e.VoIP); err != nil {
			return nil, apperrors.NewExternalError("postgres", "failed to scan blocked call row").WithCause(err)
		}
		e.Reason = call.Reason(reason)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewExternalError("postgres", "failed to iterate blocked calls").WithCause(err)
	}
	return events, nil
}

func (s *RemoteStore) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperrors.NewExternalError("postgres", "failed to begin transaction").WithCause(err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return apperrors.NewExternalError("postgres", "failed to "+op).WithCause(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewExternalError("postgres", "failed to commit "+op).WithCause(err)
	}
	return nil
}
