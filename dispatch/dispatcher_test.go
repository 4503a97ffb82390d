package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"guardbot/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Unix(1700000000, 0)

func newTestDispatcher(p *RecordingPlatform, ttl time.Duration) *Dispatcher {
	d := New(p, Options{NoticeTTL: ttl, Now: func() time.Time { return fixedNow }})
	return d
}

type auditLog struct{ got []model.Decision }

func (a *auditLog) Audit(ctx context.Context, d model.Decision) { a.got = append(a.got, d) }

func target() model.Target {
	return model.Target{GroupID: "g1", ChannelID: "c1", UserID: "42", MessageID: "m1"}
}

func TestApplyBanIdempotent(t *testing.T) {
	p := NewRecordingPlatform()
	x := newTestDispatcher(p, 0)
	defer x.Close()
	ctx := context.Background()

	ban := model.Decision{Kind: model.Ban, Target: target(), Reason: "spam", Text: "🚫 {mention} banned"}.WithID("ev1", 0)
	require.NoError(t, x.Apply(ctx, ban))
	require.NoError(t, x.Apply(ctx, ban))
	assert.Equal(t, 1, p.Count("ban"))
	assert.True(t, p.IsBanned("g1", "42"))

	// A different decision for an already banned member is still a success.
	again := ban.WithID("ev2", 0)
	require.NoError(t, x.Apply(ctx, again))
	assert.Equal(t, 2, p.Count("ban"))
	assert.True(t, p.IsBanned("g1", "42"))
}

func TestApplyBanUntil(t *testing.T) {
	p := NewRecordingPlatform()
	a := &auditLog{}
	x := New(p, Options{Auditor: a, Now: func() time.Time { return fixedNow }})
	defer x.Close()
	ctx := context.Background()

	require.NoError(t, x.Apply(ctx, model.Decision{Kind: model.Ban, Target: target(), Duration: time.Hour, Notify: true}))
	bans := p.CallsOf("ban")
	require.Len(t, bans, 1)
	assert.Equal(t, fixedNow.Add(time.Hour), bans[0].Until)
	assert.Equal(t, 1, p.Count("direct"))
	assert.Len(t, a.got, 1)

	p2 := NewRecordingPlatform()
	x2 := newTestDispatcher(p2, 0)
	defer x2.Close()
	require.NoError(t, x2.Apply(ctx, model.Decision{Kind: model.Ban, Target: target()}))
	assert.True(t, p2.CallsOf("ban")[0].Until.IsZero())
}

func TestApplyDeleteAndMute(t *testing.T) {
	p := NewRecordingPlatform()
	x := newTestDispatcher(p, 0)
	defer x.Close()

	d := model.Decision{
		Kind:     model.DeleteAndMute,
		Target:   target(),
		Duration: 30 * time.Minute,
		Text:     "🚫 {mention} has been muted",
		Mention:  &model.UserRef{ID: "42", FirstName: "Eve"},
	}
	require.NoError(t, x.Apply(context.Background(), d))

	calls := p.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "delete", calls[0].Op)
	assert.Equal(t, "restrict", calls[1].Op)
	assert.Equal(t, model.MutedPermissions, calls[1].Perms)
	assert.Equal(t, fixedNow.Add(30*time.Minute), calls[1].Until)
	assert.Equal(t, "reply", calls[2].Op)
	assert.Empty(t, calls[2].Message.ReplyTo)
	assert.Equal(t, "🚫 <@42> has been muted", calls[2].Text)
	assert.Equal(t, []string{"42"}, calls[2].Message.MentionUserIDs)
}

func TestApplyDeleteGoneIsSuccess(t *testing.T) {
	p := NewRecordingPlatform()
	x := newTestDispatcher(p, 0)
	defer x.Close()
	ctx := context.Background()

	require.NoError(t, p.DeleteMessage(ctx, "g1", "c1", "m1"))
	d := model.Decision{Kind: model.DeleteAndWarn, Target: target(), Text: "gone"}
	require.NoError(t, x.Apply(ctx, d))
	assert.Equal(t, 1, p.Count("reply"))
}

func TestApplyPlatformError(t *testing.T) {
	p := NewRecordingPlatform()
	x := newTestDispatcher(p, 0)
	defer x.Close()
	ctx := context.Background()

	p.Fail("ban", errors.New("Missing Permissions"))
	d := model.Decision{Kind: model.Ban, Target: target(), Text: "banned"}.WithID("ev", 0)
	err := x.Apply(ctx, d)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindPlatform))
	assert.Contains(t, model.UserMessage(err), "Missing Permissions")
	assert.Zero(t, p.Count("reply"))

	// Not marked applied, so a redelivery tries again.
	p.Fail("ban", nil)
	require.NoError(t, x.Apply(ctx, d))
	assert.Equal(t, 2, p.Count("ban"))
	assert.Equal(t, 1, p.Count("reply"))
}

func TestEphemeralNoticeDeleted(t *testing.T) {
	p := NewRecordingPlatform()
	x := newTestDispatcher(p, 20*time.Millisecond)
	ctx := context.Background()

	d := model.Decision{Kind: model.Reply, Target: target(), Text: "temporary", Ephemeral: true}
	require.NoError(t, x.Apply(ctx, d))
	assert.Equal(t, 1, x.Pending())

	assert.Eventually(t, func() bool {
		for _, c := range p.CallsOf("delete") {
			if c.MessageID == "sent-1" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	x.Close()
	assert.Zero(t, x.Pending())
}

func TestEphemeralNoticeAlreadyDeleted(t *testing.T) {
	p := NewRecordingPlatform()
	x := newTestDispatcher(p, 10*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, x.Apply(ctx, model.Decision{Kind: model.Reply, Target: target(), Text: "x", Ephemeral: true}))
	require.NoError(t, p.DeleteMessage(ctx, "g1", "c1", "sent-1"))

	assert.Eventually(t, func() bool { return p.Count("delete") == 2 }, time.Second, 5*time.Millisecond)
	x.Close()
}

func TestCloseCancelsNotices(t *testing.T) {
	p := NewRecordingPlatform()
	x := newTestDispatcher(p, time.Hour)

	require.NoError(t, x.Apply(context.Background(), model.Decision{Kind: model.Reply, Target: target(), Text: "x", Ephemeral: true}))
	x.Close()
	assert.Zero(t, p.Count("delete"))

	// Nothing is scheduled after close.
	require.NoError(t, x.Apply(context.Background(), model.Decision{Kind: model.Reply, Target: target(), Text: "y", Ephemeral: true}))
	assert.Zero(t, x.Pending())
}

func TestApproveEditsPrompt(t *testing.T) {
	p := NewRecordingPlatform()
	x := newTestDispatcher(p, 0)
	defer x.Close()

	d := model.Decision{Kind: model.Approve, Target: target(), EditMessageID: "prompt", Text: "✅ ok"}
	require.NoError(t, x.Apply(context.Background(), d))

	restrict := p.CallsOf("restrict")
	require.Len(t, restrict, 1)
	assert.Equal(t, model.OpenPermissions, restrict[0].Perms)
	assert.True(t, restrict[0].Until.IsZero())

	edits := p.CallsOf("edit")
	require.Len(t, edits, 1)
	assert.Equal(t, "prompt", edits[0].MessageID)
	assert.Zero(t, p.Count("reply"))
}

func TestIsAdminAsksEveryTime(t *testing.T) {
	p := NewRecordingPlatform()
	x := newTestDispatcher(p, 0)
	defer x.Close()
	ctx := context.Background()

	p.SetAdmin("g1", "a", true)
	ok, err := x.IsAdmin(ctx, "g1", "a")
	require.NoError(t, err)
	assert.True(t, ok)

	p.SetAdmin("g1", "a", false)
	ok, err = x.IsAdmin(ctx, "g1", "a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, p.Count("get_admins"))
}

func TestSetChatPermissions(t *testing.T) {
	p := NewRecordingPlatform()
	x := newTestDispatcher(p, 0)
	defer x.Close()

	require.NoError(t, x.SetChatPermissions(context.Background(), "g1", model.ClosedPermissions))
	p.Fail("set_permissions", errors.New("nope"))
	err := x.SetChatPermissions(context.Background(), "g1", model.OpenPermissions)
	assert.True(t, model.IsKind(err, model.KindPlatform))
}
