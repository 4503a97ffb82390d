package model

import (
	"context"
	"time"
)

// GroupStore is the part of the policy store that manages group configuration.
type GroupStore interface {
	EnsureGroup(ctx context.Context, chatID, title string, now time.Time) (Group, error)
	GetGroup(ctx context.Context, chatID string) (*Group, error)
	UpdateGroup(ctx context.Context, g Group) error
}

// MemberStore is the part of the policy store that holds per-member state.
type MemberStore interface {
	GetMember(ctx context.Context, groupID, userID string) (*Member, error)
	UpsertMember(ctx context.Context, m Member) error
	SetApproved(ctx context.Context, groupID, userID string, approved bool) error
	AddWarning(ctx context.Context, w Warning, maxWarnings int) (WarnResult, error)
	ResetWarnings(ctx context.Context, groupID, userID string) error
	CountWarnings(ctx context.Context, groupID, userID string) (int, error)
	ListWarnings(ctx context.Context, groupID, userID string, limit int) ([]Warning, error)
}

// AdminChecker answers live administrator queries against the platform.
type AdminChecker interface {
	IsAdmin(ctx context.Context, groupID, userID string) (bool, error)
}
