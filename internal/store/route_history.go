package store

import (
	"context"
	"math"

	errx "github.com/JoLiu-ai/agentic-chat/internal/core/error"
)

// RecordRoute appends one routing decision to the audit log. Satisfies the
// graph's route recorder.
func (s *Store) RecordRoute(ctx context.Context, sessionID, userMessage, routedTo, reasoning string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO route_history (session_id, user_message, routed_to, reasoning)
		VALUES ($1, $2, $3, $4)`,
		sessionID, userMessage, routedTo, reasoning)
	if err != nil {
		return errx.WrapPostgres(err)
	}
	return nil
}

// ListRouteHistory returns the newest routing decisions across all sessions.
func (s *Store) ListRouteHistory(ctx context.Context, limit int) ([]*RouteEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, user_message, routed_to, reasoning, created_at
		FROM route_history ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	defer rows.Close()
	return collectRouteEntries(rows)
}

// ListSessionRoutes returns one session's routing decisions, oldest first.
func (s *Store) ListSessionRoutes(ctx context.Context, sessionID string) ([]*RouteEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, user_message, routed_to, reasoning, created_at
		FROM route_history WHERE session_id = $1
		ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	defer rows.Close()
	return collectRouteEntries(rows)
}

// RouteStatsSummary aggregates per-agent counts and percentages over the
// whole audit log.
func (s *Store) RouteStatsSummary(ctx context.Context) (*RouteStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT routed_to, COUNT(*) FROM route_history GROUP BY routed_to`)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	defer rows.Close()

	byAgent := make(map[string]int64)
	var total int64
	for rows.Next() {
		var agent string
		var n int64
		if err := rows.Scan(&agent, &n); err != nil {
			return nil, errx.WrapPostgres(err)
		}
		byAgent[agent] = n
		total += n
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapPostgres(err)
	}

	return ComputeRouteStats(total, byAgent), nil
}

// ComputeRouteStats derives the percentage view from raw counts. Percentages
// are rounded to one decimal place.
func ComputeRouteStats(total int64, byAgent map[string]int64) *RouteStats {
	stats := &RouteStats{
		Total:    total,
		ByAgent:  byAgent,
		Percents: make(map[string]float64, len(byAgent)),
	}
	if total == 0 {
		return stats
	}
	for agent, n := range byAgent {
		stats.Percents[agent] = math.Round(float64(n)/float64(total)*1000) / 10
	}
	return stats
}

func collectRouteEntries(rows messageRows) ([]*RouteEntry, error) {
	out := make([]*RouteEntry, 0)
	for rows.Next() {
		var e RouteEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.UserMessage, &e.RoutedTo, &e.Reasoning, &e.CreatedAt); err != nil {
			return nil, errx.WrapPostgres(err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return out, nil
}
