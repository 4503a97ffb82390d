package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"guardbot/model"
)

const memberColumns = `group_id, user_id, username, first_name, last_name, is_approved, is_admin, warnings_count, joined_at`

// GetMember returns the member row, or nil when the user was never tracked in the group.
func (s *Store) GetMember(ctx context.Context, groupID, userID string) (*model.Member, error) {
	var m model.Member
	err := s.db.GetContext(ctx, &m, `SELECT `+memberColumns+` FROM members WHERE group_id = ? AND user_id = ?`, groupID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, model.TransientStoreError("failed to load member", fmt.Errorf("member %s/%s: %w", groupID, userID, err))
	}
	return &m, nil
}

// UpsertMember records a join. A rejoining member keeps its warning count; the
// display fields, approval flag and join time are refreshed.
func (s *Store) UpsertMember(ctx context.Context, m model.Member) error {
	query := `INSERT INTO members (` + memberColumns + `)
			  VALUES (:group_id, :user_id, :username, :first_name, :last_name, :is_approved, :is_admin, :warnings_count, :joined_at)
			  ON CONFLICT (group_id, user_id) DO UPDATE SET
			  username = excluded.username, first_name = excluded.first_name, last_name = excluded.last_name,
			  is_approved = excluded.is_approved, is_admin = excluded.is_admin, joined_at = excluded.joined_at`
	if _, err := s.db.NamedExecContext(ctx, query, m); err != nil {
		return model.TransientStoreError("failed to upsert member", fmt.Errorf("member %s/%s: %w", m.GroupID, m.UserID, err))
	}
	return nil
}

// SetApproved flips the approval flag of an existing member.
func (s *Store) SetApproved(ctx context.Context, groupID, userID string, approved bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE members SET is_approved = ? WHERE group_id = ? AND user_id = ?`, approved, groupID, userID)
	if err != nil {
		return model.TransientStoreError("failed to update approval", fmt.Errorf("member %s/%s: %w", groupID, userID, err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return model.TransientStoreError("failed to update approval", err)
	}
	if rowsAffected == 0 {
		return model.NotFound("❌ User not found in database.")
	}
	return nil
}

// AddWarning appends the audit row and bumps the member's counter in one
// transaction. When the counter reaches maxWarnings it is reset to zero, the
// row is marked as the one that triggered the ban and the result reports
// Banned. A warning whose EventID was already recorded changes nothing and is
// reported as Duplicate, carrying the Banned flag of the stored row so the ban
// can be reissued.
func (s *Store) AddWarning(ctx context.Context, w model.Warning, maxWarnings int) (model.WarnResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.WarnResult{}, model.TransientStoreError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.GetContext(ctx, &count, `SELECT warnings_count FROM members WHERE group_id = ? AND user_id = ?`, w.GroupID, w.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.WarnResult{}, model.NotFound("❌ User not found in database.")
	}
	if err != nil {
		return model.WarnResult{}, model.TransientStoreError("failed to read warning count", err)
	}

	res := model.WarnResult{Count: count + 1}
	next := res.Count
	if res.Count >= maxWarnings {
		res.Banned = true
		next = 0
	}
	w.TriggeredBan = res.Banned

	query := `INSERT OR IGNORE INTO warnings (group_id, user_id, reason, issued_by, issued_at, event_id, triggered_ban)
			  VALUES (:group_id, :user_id, :reason, :issued_by, :issued_at, :event_id, :triggered_ban)`
	result, err := tx.NamedExecContext(ctx, query, w)
	if err != nil {
		return model.WarnResult{}, model.TransientStoreError("failed to insert warning", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return model.WarnResult{}, model.TransientStoreError("failed to insert warning", err)
	}
	if inserted == 0 {
		var triggered bool
		err := tx.GetContext(ctx, &triggered, `SELECT triggered_ban FROM warnings WHERE group_id = ? AND event_id = ?`, w.GroupID, w.EventID)
		if err != nil {
			return model.WarnResult{}, model.TransientStoreError("failed to read recorded warning", err)
		}
		return model.WarnResult{Count: count, Banned: triggered, Duplicate: true}, nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE members SET warnings_count = ? WHERE group_id = ? AND user_id = ?`, next, w.GroupID, w.UserID); err != nil {
		return model.WarnResult{}, model.TransientStoreError("failed to update warning count", err)
	}

	if err := tx.Commit(); err != nil {
		return model.WarnResult{}, model.TransientStoreError("failed to commit warning", err)
	}
	return res, nil
}

// ResetWarnings sets the member's counter back to zero. Audit rows are kept.
func (s *Store) ResetWarnings(ctx context.Context, groupID, userID string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE members SET warnings_count = 0 WHERE group_id = ? AND user_id = ?`, groupID, userID)
	if err != nil {
		return model.TransientStoreError("failed to reset warnings", fmt.Errorf("member %s/%s: %w", groupID, userID, err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return model.TransientStoreError("failed to reset warnings", err)
	}
	if rowsAffected == 0 {
		return model.NotFound("❌ User not found in database.")
	}
	return nil
}

// CountWarnings returns the number of audit rows for a member, across resets.
func (s *Store) CountWarnings(ctx context.Context, groupID, userID string) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM warnings WHERE group_id = ? AND user_id = ?`, groupID, userID); err != nil {
		return 0, model.TransientStoreError("failed to count warnings", err)
	}
	return count, nil
}

// ListWarnings returns a member's audit trail, newest first.
func (s *Store) ListWarnings(ctx context.Context, groupID, userID string, limit int) ([]model.Warning, error) {
	var records []model.Warning
	query := `SELECT id, group_id, user_id, reason, issued_by, issued_at, event_id, triggered_ban FROM warnings
			  WHERE group_id = ? AND user_id = ? ORDER BY issued_at DESC, id DESC LIMIT ?`
	if err := s.db.SelectContext(ctx, &records, query, groupID, userID, limit); err != nil {
		return nil, model.TransientStoreError("failed to list warnings", err)
	}
	return records, nil
}
