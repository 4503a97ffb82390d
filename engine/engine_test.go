package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"guardbot/commands"
	"guardbot/dispatch"
	"guardbot/filter"
	"guardbot/flood"
	"guardbot/model"
	"guardbot/moderation"
	"guardbot/utils/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	groupID = "100"
	adminID = "1"
	userID  = "2"
	otherID = "3"
)

var (
	admin = model.UserRef{ID: adminID, Username: "boss", FirstName: "Boss"}
	user  = model.UserRef{ID: userID, Username: "ann", FirstName: "Ann"}
	other = model.UserRef{ID: otherID, Username: "bob", FirstName: "Bob"}
	base  = time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
)

type harness struct {
	engine   *Engine
	platform *dispatch.RecordingPlatform
	store    *database.Store
	seq      int
}

func newHarness(t *testing.T, wrap func(*database.Store) Store) *harness {
	t.Helper()
	store, err := database.Open(filepath.Join(t.TempDir(), "guardbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := model.DefaultModerationConfig()
	platform := dispatch.NewRecordingPlatform()
	platform.SetAdmin(groupID, adminID, true)
	d := dispatch.New(platform, dispatch.Options{})
	t.Cleanup(d.Close)

	fe, err := filter.NewEngine(store, cfg)
	require.NoError(t, err)

	var es Store = store
	if wrap != nil {
		es = wrap(store)
	}
	e := New(Deps{
		Store:      es,
		Filter:     fe,
		Flood:      flood.NewDetector(flood.NewMemStore(), cfg),
		Machine:    moderation.New(store, d, cfg),
		Dispatcher: d,
	}, cfg)
	t.Cleanup(e.Close)
	return &harness{engine: e, platform: platform, store: store}
}

func (h *harness) nextID() string {
	h.seq++
	return fmt.Sprintf("evt-%d", h.seq)
}

func (h *harness) message(from model.UserRef, text string, at time.Time) model.Event {
	id := h.nextID()
	return model.Event{
		ID:        id,
		Kind:      model.MessageReceived,
		GroupID:   groupID,
		ChannelID: "chan",
		User:      from,
		Timestamp: at,
		MessageID: "msg-" + id,
		Text:      text,
	}
}

func (h *harness) command(from model.UserRef, name string, target *model.UserRef, args ...string) model.Event {
	id := h.nextID()
	return model.Event{
		ID:        id,
		Kind:      model.CommandInvoked,
		GroupID:   groupID,
		ChannelID: "chan",
		User:      from,
		Timestamp: base,
		MessageID: "msg-" + id,
		Command:   &model.Command{Name: name, Args: args, Target: target},
	}
}

func (h *harness) join(u model.UserRef) model.Event {
	return model.Event{ID: h.nextID(), Kind: model.UserJoined, GroupID: groupID, ChannelID: "system", User: u, Timestamp: base}
}

func (h *harness) handle(t *testing.T, ev model.Event) error {
	t.Helper()
	return h.engine.Handle(context.Background(), ev)
}

func (h *harness) lastReply(t *testing.T) dispatch.Call {
	t.Helper()
	replies := h.platform.CallsOf("reply")
	require.NotEmpty(t, replies)
	return replies[len(replies)-1]
}

func TestEveryCatalogueCommandIsRouted(t *testing.T) {
	h := newHarness(t, nil)
	for _, entry := range commands.Catalogue {
		_, ok := h.engine.commands[entry.Name()]
		assert.True(t, ok, entry.Name())
	}
}

func TestBlockedWordIsDeleted(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.handle(t, h.command(admin, "block", nil, "spam")))
	assert.Contains(t, h.lastReply(t).Text, "added to blocklist")

	ev := h.message(user, "buy SPAM now", base)
	require.NoError(t, h.handle(t, ev))

	deletes := h.platform.CallsOf("delete")
	require.Len(t, deletes, 1)
	assert.Equal(t, ev.MessageID, deletes[0].MessageID)
	assert.Contains(t, h.lastReply(t).Text, "<@2>")

	require.NoError(t, h.handle(t, h.message(user, "hello there", base)))
	assert.Equal(t, 1, h.platform.Count("delete"))
}

func TestRegexBlockValidation(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.handle(t, h.command(admin, "block", nil, "(", "--regex")))
	assert.Contains(t, h.lastReply(t).Text, "Invalid regex")

	require.NoError(t, h.handle(t, h.command(admin, "block", nil, "fr[e3]e", "--regex")))
	require.NoError(t, h.handle(t, h.message(user, "get FR3E stuff", base)))
	assert.Equal(t, 1, h.platform.Count("delete"))

	require.NoError(t, h.handle(t, h.command(admin, "blocklist", nil)))
	assert.Contains(t, h.lastReply(t).Text, "(regex)")

	require.NoError(t, h.handle(t, h.command(admin, "unblock", nil, "fr[e3]e")))
	assert.Contains(t, h.lastReply(t).Text, "removed from blocklist")
	require.NoError(t, h.handle(t, h.command(admin, "unblock", nil, "fr[e3]e")))
	assert.Contains(t, h.lastReply(t).Text, "not blocked")
}

func TestFloodMutesOnce(t *testing.T) {
	h := newHarness(t, nil)
	for i := 0; i < 5; i++ {
		require.NoError(t, h.handle(t, h.message(user, "hi", base.Add(time.Duration(i)*time.Second))))
	}
	restricts := h.platform.CallsOf("restrict")
	require.Len(t, restricts, 1)
	assert.Equal(t, userID, restricts[0].UserID)
	assert.Equal(t, model.MutedPermissions, restricts[0].Perms)
	assert.Equal(t, 1, h.platform.Count("delete"))

	require.NoError(t, h.handle(t, h.message(user, "hi", base.Add(6*time.Second))))
	assert.Equal(t, 1, h.platform.Count("restrict"))
}

func TestAdminsAreExempt(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.handle(t, h.command(admin, "block", nil, "spam")))
	for i := 0; i < 10; i++ {
		require.NoError(t, h.handle(t, h.message(admin, "spam spam", base)))
	}
	assert.Equal(t, 0, h.platform.Count("delete"))
	assert.Equal(t, 0, h.platform.Count("restrict"))
}

func TestAntiFloodCanBeDisabled(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.handle(t, h.command(admin, "setting", nil, "antiflood", "off")))
	for i := 0; i < 10; i++ {
		require.NoError(t, h.handle(t, h.message(user, "hi", base)))
	}
	assert.Equal(t, 0, h.platform.Count("restrict"))
}

func TestDuplicateEventHasNoEffect(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.handle(t, h.command(admin, "block", nil, "spam")))

	ev := h.message(user, "spam", base)
	require.NoError(t, h.handle(t, ev))
	err := h.handle(t, ev)
	assert.ErrorIs(t, err, model.ErrDuplicateEvent)
	assert.Equal(t, 1, h.platform.Count("delete"))
}

func TestNonAdminCommandIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.handle(t, h.join(user)))
	require.NoError(t, h.handle(t, h.command(other, "warn", &user, "rude")))
	assert.Contains(t, h.lastReply(t).Text, "Only admins")

	m, err := h.store.GetMember(context.Background(), groupID, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, m.WarningsCount)
}

func TestWarnEscalatesToBan(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.handle(t, h.join(user)))

	warn := h.command(admin, "warn", &user, "spamming", "links")
	require.NoError(t, h.handle(t, warn))
	assert.Contains(t, h.lastReply(t).Text, "Warnings: 1/3")
	assert.Contains(t, h.lastReply(t).Text, "spamming links")

	// a redelivered command must not count twice
	assert.ErrorIs(t, h.handle(t, warn), model.ErrDuplicateEvent)

	require.NoError(t, h.handle(t, h.command(admin, "warn", &user)))
	assert.Contains(t, h.lastReply(t).Text, "Warnings: 2/3")
	assert.False(t, h.platform.IsBanned(groupID, userID))

	require.NoError(t, h.handle(t, h.command(admin, "warn", &user)))
	assert.True(t, h.platform.IsBanned(groupID, userID))
	assert.Contains(t, h.lastReply(t).Text, "banned for reaching 3 warnings")

	m, err := h.store.GetMember(context.Background(), groupID, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, m.WarningsCount)
}

func TestWarnRedeliveryAfterFailedBanStillBans(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.handle(t, h.join(user)))
	require.NoError(t, h.handle(t, h.command(admin, "warn", &user)))
	require.NoError(t, h.handle(t, h.command(admin, "warn", &user)))

	third := h.command(admin, "warn", &user)
	h.platform.Fail("ban", errors.New("gateway timeout"))
	err := h.handle(t, third)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindPlatform))
	assert.False(t, h.platform.IsBanned(groupID, userID))

	h.platform.Fail("ban", nil)
	require.NoError(t, h.handle(t, third))
	assert.True(t, h.platform.IsBanned(groupID, userID))
	assert.Equal(t, 2, h.platform.Count("ban"))

	ctx := context.Background()
	total, err := h.store.CountWarnings(ctx, groupID, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	m, err := h.store.GetMember(ctx, groupID, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, m.WarningsCount)

	assert.ErrorIs(t, h.handle(t, third), model.ErrDuplicateEvent)
	assert.Equal(t, 2, h.platform.Count("ban"))
}

func TestConcurrentWarnsBanOnce(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.handle(t, h.join(user)))

	events := make([]model.Event, 3)
	for i := range events {
		events[i] = h.command(admin, "warn", &user, fmt.Sprintf("reason-%d", i))
	}
	var wg sync.WaitGroup
	errs := make([]error, len(events))
	for i, ev := range events {
		wg.Add(1)
		go func(i int, ev model.Event) {
			defer wg.Done()
			errs[i] = h.engine.Handle(context.Background(), ev)
		}(i, ev)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}

	ctx := context.Background()
	total, err := h.store.CountWarnings(ctx, groupID, userID)
	require.NoError(t, err)
	assert.Equal(t, len(events), total)
	m, err := h.store.GetMember(ctx, groupID, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, m.WarningsCount)
	assert.Equal(t, 1, h.platform.Count("ban"))
}

func TestConcurrentFloodMutesOnce(t *testing.T) {
	h := newHarness(t, nil)
	// the limit is 5 and the window restarts after a flood verdict
	events := make([]model.Event, 7)
	for i := range events {
		events[i] = h.message(user, "hi", base)
	}
	var wg sync.WaitGroup
	for _, ev := range events {
		wg.Add(1)
		go func(ev model.Event) {
			defer wg.Done()
			assert.NoError(t, h.engine.Handle(context.Background(), ev))
		}(ev)
	}
	wg.Wait()
	assert.Equal(t, 1, h.platform.Count("restrict"))
}

func TestReapprovalKeepsMute(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.handle(t, h.join(user)))
	for i := 0; i < 5; i++ {
		require.NoError(t, h.handle(t, h.message(user, "hi", base.Add(time.Duration(i)*time.Second))))
	}
	require.Equal(t, 1, h.platform.Count("restrict"))

	press := model.Event{ID: h.nextID(), Kind: model.ButtonPressed, GroupID: groupID, ChannelID: "system",
		User: user, Timestamp: base, MessageID: "old-prompt", Callback: model.CaptchaPayload(userID)}
	require.NoError(t, h.handle(t, press))
	assert.Contains(t, h.lastReply(t).Text, "already verified")

	require.NoError(t, h.handle(t, h.command(admin, "approve", &user)))
	assert.Contains(t, h.lastReply(t).Text, "already approved")

	restricts := h.platform.CallsOf("restrict")
	require.Len(t, restricts, 1)
	assert.Equal(t, model.MutedPermissions, restricts[0].Perms)
	assert.Equal(t, 0, h.platform.Count("edit"))
}

func TestWarningsCommand(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.handle(t, h.join(user)))
	require.NoError(t, h.handle(t, h.command(admin, "warn", &user, "spamming")))
	require.NoError(t, h.handle(t, h.command(admin, "warn", &user, "{mention}", "again")))

	// anyone may look
	require.NoError(t, h.handle(t, h.command(other, "warnings", &user)))
	reply := h.lastReply(t)
	assert.Contains(t, reply.Text, "Warnings for Ann: 2/3")
	assert.Contains(t, reply.Text, "Recorded in total: 2")
	assert.Contains(t, reply.Text, "spamming")
	assert.Contains(t, reply.Text, "{\u200bmention} again")
	assert.NotContains(t, reply.Text, "<@"+userID+">")

	require.NoError(t, h.handle(t, h.command(other, "warnings", &model.UserRef{ID: "404"})))
	assert.Contains(t, h.lastReply(t).Text, "User not found")
}

func TestCaptchaFlow(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.handle(t, h.command(admin, "setting", nil, "captcha", "on")))
	require.NoError(t, h.handle(t, h.join(user)))

	prompt := h.lastReply(t)
	require.Len(t, prompt.Message.Buttons, 1)
	payload := prompt.Message.Buttons[0].Payload

	// unverified members cannot post
	require.NoError(t, h.handle(t, h.message(user, "hello", base)))
	assert.Equal(t, 1, h.platform.Count("delete"))

	press := func(from model.UserRef) model.Event {
		return model.Event{ID: h.nextID(), Kind: model.ButtonPressed, GroupID: groupID, ChannelID: "system",
			User: from, Timestamp: base, MessageID: "sent-2", Callback: payload}
	}
	require.NoError(t, h.handle(t, press(other)))
	assert.Contains(t, h.lastReply(t).Text, "not for you")
	assert.Equal(t, 0, h.platform.Count("restrict"))

	require.NoError(t, h.handle(t, press(user)))
	restricts := h.platform.CallsOf("restrict")
	require.Len(t, restricts, 1)
	assert.Equal(t, model.OpenPermissions, restricts[0].Perms)
	assert.Equal(t, 1, h.platform.Count("edit"))

	require.NoError(t, h.handle(t, h.message(user, "hello again", base)))
	assert.Equal(t, 1, h.platform.Count("delete"))
}

func TestApprovalMode(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.handle(t, h.command(admin, "setting", nil, "approval", "on")))
	require.NoError(t, h.handle(t, h.join(user)))
	assert.Contains(t, h.lastReply(t).Text, "approval mode")

	require.NoError(t, h.handle(t, h.message(user, "let me in", base)))
	assert.Equal(t, 1, h.platform.Count("delete"))

	require.NoError(t, h.handle(t, h.command(admin, "approve", &user)))
	assert.Contains(t, h.lastReply(t).Text, "has been approved")

	require.NoError(t, h.handle(t, h.message(user, "thanks", base)))
	assert.Equal(t, 1, h.platform.Count("delete"))
}

func TestMediaAndNightMode(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.handle(t, h.command(admin, "media", nil, "photo", "deny")))

	photo := h.message(user, "", base)
	photo.MediaType = model.MediaPhoto
	require.NoError(t, h.handle(t, photo))
	assert.Equal(t, 1, h.platform.Count("delete"))

	require.NoError(t, h.handle(t, h.command(admin, "media", nil, "photo", "clear")))
	photo = h.message(user, "", base)
	photo.MediaType = model.MediaPhoto
	require.NoError(t, h.handle(t, photo))
	assert.Equal(t, 1, h.platform.Count("delete"))

	require.NoError(t, h.handle(t, h.command(admin, "nightmode", nil, "23:00", "07:00")))
	assert.Contains(t, h.lastReply(t).Text, "Night mode enabled")

	late := time.Date(2024, 3, 1, 23, 30, 0, 0, time.Local)
	video := h.message(user, "", late)
	video.MediaType = model.MediaVideo
	require.NoError(t, h.handle(t, video))
	assert.Equal(t, 2, h.platform.Count("delete"))

	// text passes under the delete_media policy
	require.NoError(t, h.handle(t, h.message(other, "good night", late)))
	assert.Equal(t, 2, h.platform.Count("delete"))

	require.NoError(t, h.handle(t, h.command(admin, "nightmode", nil, "25:00", "07:00")))
	assert.Contains(t, h.lastReply(t).Text, "HH:MM")
	require.NoError(t, h.handle(t, h.command(admin, "media", nil, "hologram", "deny")))
	assert.Contains(t, h.lastReply(t).Text, "Unknown media type")
}

func TestLangCommand(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.handle(t, h.command(admin, "lang", nil, "es")))
	assert.Contains(t, h.lastReply(t).Text, "Spanish")

	g, err := h.store.GetGroup(context.Background(), groupID)
	require.NoError(t, err)
	assert.Equal(t, "es", g.Language)

	require.NoError(t, h.handle(t, h.command(admin, "lang", nil, "xx")))
	reply := h.lastReply(t).Text
	assert.Contains(t, reply, "en (English)")
	assert.Contains(t, reply, "ru (Russian)")
}

func TestOpenClose(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.handle(t, h.command(admin, "close", nil)))
	calls := h.platform.CallsOf("set_permissions")
	require.Len(t, calls, 1)
	assert.Equal(t, model.ClosedPermissions, calls[0].Perms)

	require.NoError(t, h.handle(t, h.command(admin, "open", nil)))
	calls = h.platform.CallsOf("set_permissions")
	require.Len(t, calls, 2)
	assert.Equal(t, model.OpenPermissions, calls[1].Perms)
}

func TestPlatformErrorIsSurfacedToAdmin(t *testing.T) {
	h := newHarness(t, nil)
	h.platform.Fail("set_permissions", errors.New("missing permissions"))

	err := h.handle(t, h.command(admin, "close", nil))
	assert.True(t, model.IsKind(err, model.KindPlatform))
	assert.Contains(t, h.lastReply(t).Text, "missing permissions")
}

func TestTagAll(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.handle(t, h.command(admin, "tagall", nil, "meeting", "at", "5")))
	reply := h.lastReply(t)
	assert.True(t, reply.Message.MentionAll)
	assert.Contains(t, reply.Text, "meeting at 5")
}

type failingStats struct {
	*database.Store
}

func (failingStats) GetGroupStats(ctx context.Context, groupID string) (database.GroupStats, error) {
	return database.GroupStats{}, model.TransientStoreError("failed to count", errors.New("disk I/O error"))
}

func TestStoreFailureGetsGenericReply(t *testing.T) {
	h := newHarness(t, func(s *database.Store) Store { return failingStats{s} })
	err := h.handle(t, h.command(admin, "stats", nil))
	assert.True(t, model.IsKind(err, model.KindTransientStore))
	assert.Equal(t, model.GenericFailureText, h.lastReply(t).Text)
	assert.NotContains(t, h.lastReply(t).Text, "disk")
}

func TestStatsAndHelp(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.handle(t, h.join(user)))
	require.NoError(t, h.handle(t, h.command(admin, "stats", nil)))
	assert.Contains(t, h.lastReply(t).Text, "Members: 1")

	require.NoError(t, h.handle(t, h.command(user, "help", nil)))
	assert.True(t, strings.HasPrefix(h.lastReply(t).Text, "🤖 Available commands"))
}

func TestSubmitDrainsOnClose(t *testing.T) {
	h := newHarness(t, nil)
	for i := 0; i < 20; i++ {
		u := model.UserRef{ID: fmt.Sprintf("%d", 1000+i), FirstName: "User"}
		assert.True(t, h.engine.Submit(h.join(u)))
	}
	h.engine.Close()
	assert.Equal(t, 0, h.engine.Pending())
	assert.False(t, h.engine.Submit(h.join(user)))

	stats, err := h.store.GetGroupStats(context.Background(), groupID)
	require.NoError(t, err)
	assert.Equal(t, 20, stats.Members)
}

func TestSubmitKeepsPerKeyOrder(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.handle(t, h.join(user)))
	for i := 0; i < 3; i++ {
		h.engine.Submit(h.command(admin, "warn", &user, fmt.Sprintf("reason-%d", i)))
	}
	h.engine.Close()

	var counts []string
	for _, r := range h.platform.CallsOf("reply") {
		if strings.Contains(r.Text, "Warnings:") {
			counts = append(counts, r.Text[strings.Index(r.Text, "Warnings:"):][:13])
		}
	}
	assert.Equal(t, []string{"Warnings: 1/3", "Warnings: 2/3"}, counts)
	assert.True(t, h.platform.IsBanned(groupID, userID))
}
