package database

import (
	"context"
	"fmt"
	"time"

	"guardbot/model"
)

// GroupStats summarises one group for the stats command.
type GroupStats struct {
	Members      int `db:"members"`
	Approved     int `db:"approved"`
	Warnings     int `db:"warnings"`
	BlockedWords int `db:"blocked_words"`
}

// GetGroupStats counts the rows held for a group.
func (s *Store) GetGroupStats(ctx context.Context, groupID string) (GroupStats, error) {
	var st GroupStats
	query := `SELECT
			  (SELECT COUNT(*) FROM members WHERE group_id = ?) AS members,
			  (SELECT COUNT(*) FROM members WHERE group_id = ? AND is_approved = 1) AS approved,
			  (SELECT COUNT(*) FROM warnings WHERE group_id = ?) AS warnings,
			  (SELECT COUNT(*) FROM blocked_words WHERE group_id = ?) AS blocked_words`
	if err := s.db.GetContext(ctx, &st, query, groupID, groupID, groupID, groupID); err != nil {
		return GroupStats{}, model.TransientStoreError("failed to load group stats", fmt.Errorf("group %s: %w", groupID, err))
	}
	return st, nil
}

// GetAdminWarningStats retrieves the warning count issued by each admin since the given time.
func (s *Store) GetAdminWarningStats(ctx context.Context, groupID string, since time.Time) (map[string]int, error) {
	query := `SELECT issued_by, COUNT(*) AS count FROM warnings WHERE group_id = ? AND issued_at >= ? GROUP BY issued_by ORDER BY count DESC`
	rows, err := s.db.QueryContext(ctx, query, groupID, since.Unix())
	if err != nil {
		return nil, model.TransientStoreError("failed to get admin warning stats", fmt.Errorf("group %s: %w", groupID, err))
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var adminID string
		var count int
		if err := rows.Scan(&adminID, &count); err != nil {
			return nil, model.TransientStoreError("failed to scan admin warning stats row", err)
		}
		stats[adminID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, model.TransientStoreError("failed to read admin warning stats", err)
	}
	return stats, nil
}

// GetTotalWarningCount retrieves the number of warnings issued in a group since the given time.
func (s *Store) GetTotalWarningCount(ctx context.Context, groupID string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM warnings WHERE group_id = ? AND issued_at >= ?`
	if err := s.db.GetContext(ctx, &count, query, groupID, since.Unix()); err != nil {
		return 0, model.TransientStoreError("failed to get total warning count", fmt.Errorf("group %s: %w", groupID, err))
	}
	return count, nil
}
