package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"guardbot/model"
)

const groupColumns = `chat_id, title, language, welcome_enabled, goodbye_enabled, captcha_enabled,
	approval_mode, anti_flood_enabled, night_mode_enabled, night_mode_start, night_mode_end, created_at`

// EnsureGroup returns the group for chatID, creating it with defaults on first sight.
func (s *Store) EnsureGroup(ctx context.Context, chatID, title string, now time.Time) (model.Group, error) {
	g := model.NewGroup(chatID, title, now)
	query := `INSERT OR IGNORE INTO chat_groups (` + groupColumns + `)
			  VALUES (:chat_id, :title, :language, :welcome_enabled, :goodbye_enabled, :captcha_enabled,
			  :approval_mode, :anti_flood_enabled, :night_mode_enabled, :night_mode_start, :night_mode_end, :created_at)`
	if _, err := s.db.NamedExecContext(ctx, query, g); err != nil {
		return model.Group{}, model.TransientStoreError("failed to upsert group", fmt.Errorf("group %s: %w", chatID, err))
	}

	var stored model.Group
	if err := s.db.GetContext(ctx, &stored, `SELECT `+groupColumns+` FROM chat_groups WHERE chat_id = ?`, chatID); err != nil {
		return model.Group{}, model.TransientStoreError("failed to load group", fmt.Errorf("group %s: %w", chatID, err))
	}

	if title != "" && stored.Title != title {
		if _, err := s.db.ExecContext(ctx, `UPDATE chat_groups SET title = ? WHERE chat_id = ?`, title, chatID); err != nil {
			return model.Group{}, model.TransientStoreError("failed to update group title", fmt.Errorf("group %s: %w", chatID, err))
		}
		stored.Title = title
	}
	return stored, nil
}

// GetGroup returns the group for chatID, or nil when it has never been seen.
func (s *Store) GetGroup(ctx context.Context, chatID string) (*model.Group, error) {
	var g model.Group
	err := s.db.GetContext(ctx, &g, `SELECT `+groupColumns+` FROM chat_groups WHERE chat_id = ?`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, model.TransientStoreError("failed to load group", fmt.Errorf("group %s: %w", chatID, err))
	}
	return &g, nil
}

// UpdateGroup writes every mutable group setting.
func (s *Store) UpdateGroup(ctx context.Context, g model.Group) error {
	query := `UPDATE chat_groups SET title = :title, language = :language, welcome_enabled = :welcome_enabled,
			  goodbye_enabled = :goodbye_enabled, captcha_enabled = :captcha_enabled, approval_mode = :approval_mode,
			  anti_flood_enabled = :anti_flood_enabled, night_mode_enabled = :night_mode_enabled,
			  night_mode_start = :night_mode_start, night_mode_end = :night_mode_end
			  WHERE chat_id = :chat_id`
	result, err := s.db.NamedExecContext(ctx, query, g)
	if err != nil {
		return model.TransientStoreError("failed to update group", fmt.Errorf("group %s: %w", g.ChatID, err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return model.TransientStoreError("failed to update group", err)
	}
	if rowsAffected == 0 {
		return model.NotFound("❌ Group not found in database.")
	}
	return nil
}

// ListGroupIDs returns every known chat identity.
func (s *Store) ListGroupIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT chat_id FROM chat_groups ORDER BY created_at`); err != nil {
		return nil, model.TransientStoreError("failed to list groups", err)
	}
	return ids, nil
}
