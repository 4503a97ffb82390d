package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"guardbot/model"
)

// AddBlockedWord stores a pattern that has already been validated. It reports
// false when the group already blocks the same pattern.
func (s *Store) AddBlockedWord(ctx context.Context, w model.BlockedWord) (bool, error) {
	query := `INSERT OR IGNORE INTO blocked_words (group_id, word, is_regex) VALUES (:group_id, :word, :is_regex)`
	result, err := s.db.NamedExecContext(ctx, query, w)
	if err != nil {
		return false, model.TransientStoreError("failed to add blocked word", fmt.Errorf("group %s: %w", w.GroupID, err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, model.TransientStoreError("failed to add blocked word", err)
	}
	return rowsAffected > 0, nil
}

// RemoveBlockedWord deletes a pattern and reports whether it existed.
func (s *Store) RemoveBlockedWord(ctx context.Context, groupID, word string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM blocked_words WHERE group_id = ? AND word = ?`, groupID, word)
	if err != nil {
		return false, model.TransientStoreError("failed to remove blocked word", fmt.Errorf("group %s: %w", groupID, err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, model.TransientStoreError("failed to remove blocked word", err)
	}
	return rowsAffected > 0, nil
}

// BlockedWords returns the group's patterns in insertion order.
func (s *Store) BlockedWords(ctx context.Context, groupID string) ([]model.BlockedWord, error) {
	var words []model.BlockedWord
	if err := s.db.SelectContext(ctx, &words, `SELECT id, group_id, word, is_regex FROM blocked_words WHERE group_id = ? ORDER BY id`, groupID); err != nil {
		return nil, model.TransientStoreError("failed to load blocked words", fmt.Errorf("group %s: %w", groupID, err))
	}
	return words, nil
}

// MediaSetting returns the restriction for one media type, or nil when unrestricted.
func (s *Store) MediaSetting(ctx context.Context, groupID, mediaType string) (*model.MediaSetting, error) {
	var m model.MediaSetting
	err := s.db.GetContext(ctx, &m, `SELECT group_id, media_type, allowed, admin_only FROM media_settings WHERE group_id = ? AND media_type = ?`, groupID, mediaType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, model.TransientStoreError("failed to load media setting", fmt.Errorf("group %s: %w", groupID, err))
	}
	return &m, nil
}

// MediaSettings returns every restriction configured for the group.
func (s *Store) MediaSettings(ctx context.Context, groupID string) ([]model.MediaSetting, error) {
	var settings []model.MediaSetting
	if err := s.db.SelectContext(ctx, &settings, `SELECT group_id, media_type, allowed, admin_only FROM media_settings WHERE group_id = ? ORDER BY media_type`, groupID); err != nil {
		return nil, model.TransientStoreError("failed to load media settings", fmt.Errorf("group %s: %w", groupID, err))
	}
	return settings, nil
}

// SetMediaSetting creates or replaces the restriction for one media type.
func (s *Store) SetMediaSetting(ctx context.Context, m model.MediaSetting) error {
	query := `INSERT INTO media_settings (group_id, media_type, allowed, admin_only)
			  VALUES (:group_id, :media_type, :allowed, :admin_only)
			  ON CONFLICT (group_id, media_type) DO UPDATE SET allowed = excluded.allowed, admin_only = excluded.admin_only`
	if _, err := s.db.NamedExecContext(ctx, query, m); err != nil {
		return model.TransientStoreError("failed to save media setting", fmt.Errorf("group %s: %w", m.GroupID, err))
	}
	return nil
}

// ClearMediaSetting removes a restriction, returning the type to default allow.
func (s *Store) ClearMediaSetting(ctx context.Context, groupID, mediaType string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM media_settings WHERE group_id = ? AND media_type = ?`, groupID, mediaType); err != nil {
		return model.TransientStoreError("failed to clear media setting", fmt.Errorf("group %s: %w", groupID, err))
	}
	return nil
}
