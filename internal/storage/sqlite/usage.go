package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hoangduy0308/proxypal/internal/domain"
	"github.com/hoangduy0308/proxypal/internal/storage"
)

// LogUsage appends a usage_logs row and bumps the owning user's
// used_tokens/last_used_at in one transaction, so a crash between the two
// writes is impossible (§5 ordering guarantee). Mirrors the original's
// log_usage, which performs both statements inside a single with_conn
// closure.
func (s *Store) LogUsage(ctx context.Context, userID int64, provider, model string, tokensInput, tokensOutput, requestTimeMs int64, status domain.UsageStatus) error {
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO usage_logs (user_id, provider, model, tokens_input, tokens_output, request_time_ms, status, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, provider, model, tokensInput, tokensOutput, requestTimeMs, string(status), timeToStr(now),
	)
	if err != nil {
		return fmt.Errorf("insert usage log: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET used_tokens = used_tokens + ?, last_used_at = ? WHERE id = ?`,
		tokensInput+tokensOutput, timeToStr(now), userID)
	if err != nil {
		return fmt.Errorf("bump used tokens: %w", err)
	}
	if err := checkRowsAffected(res, "user"); err != nil {
		return err
	}

	return tx.Commit()
}

// periodDateFilter translates a Period into a SQL WHERE fragment and args,
// matching the original's period_to_date_filter.
func periodDateFilter(period domain.Period) (string, []any) {
	switch period {
	case domain.PeriodToday:
		return "timestamp >= ?", []any{timeToStr(time.Now().UTC().Truncate(24 * time.Hour))}
	case domain.PeriodWeek:
		return "timestamp >= ?", []any{timeToStr(time.Now().UTC().AddDate(0, 0, -7))}
	case domain.PeriodMonth:
		return "timestamp >= ?", []any{timeToStr(time.Now().UTC().AddDate(0, -1, 0))}
	default: // domain.PeriodAll or anything unrecognized: no filter
		return "1 = 1", nil
	}
}

// GetUsageStats aggregates request/token totals for period across every user.
func (s *Store) GetUsageStats(ctx context.Context, period domain.Period) (domain.UsageStats, error) {
	where, args := periodDateFilter(period)
	var stats domain.UsageStats
	err := s.read.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*), COALESCE(SUM(tokens_input), 0), COALESCE(SUM(tokens_output), 0)
		 FROM usage_logs WHERE %s`, where), args...,
	).Scan(&stats.TotalRequests, &stats.TotalTokensInput, &stats.TotalTokensOutput)
	return stats, err
}

// GetUserUsage aggregates request/token totals for one user over period.
func (s *Store) GetUserUsage(ctx context.Context, userID int64, period domain.Period) (domain.UsageStats, error) {
	where, args := periodDateFilter(period)
	args = append([]any{userID}, args...)
	var stats domain.UsageStats
	err := s.read.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*), COALESCE(SUM(tokens_input), 0), COALESCE(SUM(tokens_output), 0)
		 FROM usage_logs WHERE user_id = ? AND %s`, where), args...,
	).Scan(&stats.TotalRequests, &stats.TotalTokensInput, &stats.TotalTokensOutput)
	return stats, err
}

// GetUsageByProvider breaks down usage totals for period by provider.
func (s *Store) GetUsageByProvider(ctx context.Context, period domain.Period) ([]domain.ProviderUsage, error) {
	where, args := periodDateFilter(period)
	rows, err := s.read.QueryContext(ctx, fmt.Sprintf(
		`SELECT provider, COUNT(*), COALESCE(SUM(tokens_input), 0), COALESCE(SUM(tokens_output), 0)
		 FROM usage_logs WHERE %s GROUP BY provider ORDER BY provider`, where), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ProviderUsage
	for rows.Next() {
		var pu domain.ProviderUsage
		if err := rows.Scan(&pu.Provider, &pu.Requests, &pu.TokensInput, &pu.TokensOutput); err != nil {
			return nil, err
		}
		out = append(out, pu)
	}
	return out, rows.Err()
}

// GetDailyUsage buckets usage by calendar day over the trailing `days`
// days, optionally narrowed by filter.UserID/filter.Provider.
func (s *Store) GetDailyUsage(ctx context.Context, days int, filter storage.UsageFilter) ([]domain.DailyUsage, error) {
	conds := []string{"timestamp >= ?"}
	args := []any{timeToStr(time.Now().UTC().AddDate(0, 0, -days))}

	if filter.UserID != nil {
		conds = append(conds, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Provider != nil {
		conds = append(conds, "provider = ?")
		args = append(args, *filter.Provider)
	}

	rows, err := s.read.QueryContext(ctx, fmt.Sprintf(
		`SELECT date(timestamp) AS d, COUNT(*), COALESCE(SUM(tokens_input), 0), COALESCE(SUM(tokens_output), 0)
		 FROM usage_logs WHERE %s GROUP BY d ORDER BY d`, strings.Join(conds, " AND ")), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DailyUsage
	for rows.Next() {
		var du domain.DailyUsage
		if err := rows.Scan(&du.Date, &du.Requests, &du.TokensInput, &du.TokensOutput); err != nil {
			return nil, err
		}
		out = append(out, du)
	}
	return out, rows.Err()
}

func usageFilterClause(filter storage.UsageFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.UserID != nil {
		conds = append(conds, "ul.user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Provider != nil {
		conds = append(conds, "ul.provider = ?")
		args = append(args, *filter.Provider)
	}
	if filter.Status != nil {
		conds = append(conds, "ul.status = ?")
		args = append(args, *filter.Status)
	}
	if len(conds) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(conds, " AND "), args
}

// GetUsageLogsPaginated returns a page of raw usage_logs rows plus the
// total matching count.
func (s *Store) GetUsageLogsPaginated(ctx context.Context, limit, offset int, filter storage.UsageFilter) ([]*domain.UsageLog, int64, error) {
	where, args := usageFilterClause(filter)

	var total int64
	if err := s.read.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM usage_logs ul WHERE %s`, where), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.read.QueryContext(ctx, fmt.Sprintf(
		`SELECT ul.id, ul.user_id, ul.provider, ul.model, ul.tokens_input, ul.tokens_output, ul.request_time_ms, ul.status, ul.timestamp
		 FROM usage_logs ul WHERE %s ORDER BY ul.timestamp DESC LIMIT ? OFFSET ?`, where),
		append(append([]any{}, args...), limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*domain.UsageLog
	for rows.Next() {
		var ul domain.UsageLog
		var status, ts string
		if err := rows.Scan(&ul.ID, &ul.UserID, &ul.Provider, &ul.Model, &ul.TokensInput, &ul.TokensOutput, &ul.RequestTimeMs, &status, &ts); err != nil {
			return nil, 0, err
		}
		ul.Status = domain.UsageStatus(status)
		ul.Timestamp = parseTime(ts)
		out = append(out, &ul)
	}
	return out, total, rows.Err()
}

// GetRequestLogsPaginated joins usage_logs against users for the
// admin-facing request log, falling back to "Unknown" for a user row that
// no longer exists (deleted user, orphaned log).
func (s *Store) GetRequestLogsPaginated(ctx context.Context, limit, offset int, filter storage.UsageFilter) ([]*domain.RequestLogEntry, int64, error) {
	where, args := usageFilterClause(filter)

	var total int64
	if err := s.read.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM usage_logs ul WHERE %s`, where), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.read.QueryContext(ctx, fmt.Sprintf(
		`SELECT ul.id, ul.timestamp, ul.user_id, COALESCE(u.name, 'Unknown'), ul.provider, ul.model,
		        ul.tokens_input, ul.tokens_output, ul.request_time_ms, ul.status
		 FROM usage_logs ul LEFT JOIN users u ON ul.user_id = u.id
		 WHERE %s ORDER BY ul.timestamp DESC LIMIT ? OFFSET ?`, where),
		append(append([]any{}, args...), limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*domain.RequestLogEntry
	for rows.Next() {
		var e domain.RequestLogEntry
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.UserID, &e.UserName, &e.Provider, &e.Model,
			&e.TokensInput, &e.TokensOutput, &e.DurationMs, &e.Status); err != nil {
			return nil, 0, err
		}
		e.Timestamp = parseTime(ts)
		out = append(out, &e)
	}
	return out, total, rows.Err()
}

// GetTotalRequests counts every usage_logs row ever written.
func (s *Store) GetTotalRequests(ctx context.Context) (int64, error) {
	var n int64
	err := s.read.QueryRowContext(ctx, `SELECT COUNT(*) FROM usage_logs`).Scan(&n)
	return n, err
}
