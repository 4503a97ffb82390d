package dispatch

import (
	"context"
	"strconv"
	"sync"
	"time"

	"guardbot/model"
)

// Call is one platform call captured by RecordingPlatform.
type Call struct {
	Op        string
	GroupID   string
	ChannelID string
	UserID    string
	MessageID string
	Text      string
	Until     time.Time
	Perms     model.Permissions
	Message   OutgoingMessage
}

// RecordingPlatform is an in-memory Platform that remembers every call. It
// behaves like a real platform for idempotency: deleting a deleted message
// returns model.ErrGone and banning a banned member model.ErrAlreadyApplied.
type RecordingPlatform struct {
	mu      sync.Mutex
	calls   []Call
	admins  map[string]map[string]bool
	deleted map[string]bool
	banned  map[string]bool
	failing map[string]error
	nextID  int
}

func NewRecordingPlatform() *RecordingPlatform {
	return &RecordingPlatform{
		admins:  make(map[string]map[string]bool),
		deleted: make(map[string]bool),
		banned:  make(map[string]bool),
		failing: make(map[string]error),
	}
}

// SetAdmin grants or revokes admin rights.
func (p *RecordingPlatform) SetAdmin(groupID, userID string, admin bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.admins[groupID] == nil {
		p.admins[groupID] = make(map[string]bool)
	}
	p.admins[groupID][userID] = admin
}

// Fail makes every later call of op return err. A nil err clears it.
func (p *RecordingPlatform) Fail(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failing, op)
		return
	}
	p.failing[op] = err
}

// Calls returns a copy of the recorded calls.
func (p *RecordingPlatform) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// CallsOf returns the recorded calls of one op.
func (p *RecordingPlatform) CallsOf(op string) []Call {
	var out []Call
	for _, c := range p.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many times op was called.
func (p *RecordingPlatform) Count(op string) int {
	return len(p.CallsOf(op))
}

// IsBanned reports whether userID is banned from groupID.
func (p *RecordingPlatform) IsBanned(groupID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.banned[groupID+"/"+userID]
}

func (p *RecordingPlatform) record(c Call) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, c)
	return p.failing[c.Op]
}

func (p *RecordingPlatform) DeleteMessage(ctx context.Context, groupID, channelID, messageID string) error {
	if err := p.record(Call{Op: "delete", GroupID: groupID, ChannelID: channelID, MessageID: messageID}); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key := groupID + "/" + messageID
	if p.deleted[key] {
		return model.ErrGone
	}
	p.deleted[key] = true
	return nil
}

func (p *RecordingPlatform) RestrictMember(ctx context.Context, groupID, userID string, perms model.Permissions, until time.Time) error {
	return p.record(Call{Op: "restrict", GroupID: groupID, UserID: userID, Perms: perms, Until: until})
}

func (p *RecordingPlatform) BanMember(ctx context.Context, groupID, userID string, until time.Time, reason string) error {
	if err := p.record(Call{Op: "ban", GroupID: groupID, UserID: userID, Until: until, Text: reason}); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key := groupID + "/" + userID
	if p.banned[key] {
		return model.ErrAlreadyApplied
	}
	p.banned[key] = true
	return nil
}

func (p *RecordingPlatform) SetChatPermissions(ctx context.Context, groupID string, perms model.Permissions) error {
	return p.record(Call{Op: "set_permissions", GroupID: groupID, Perms: perms})
}

func (p *RecordingPlatform) SendReply(ctx context.Context, msg OutgoingMessage) (string, error) {
	if err := p.record(Call{Op: "reply", GroupID: msg.GroupID, ChannelID: msg.ChannelID, MessageID: msg.ReplyTo, Text: msg.Text, Message: msg}); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	return "sent-" + strconv.Itoa(p.nextID), nil
}

func (p *RecordingPlatform) EditMessage(ctx context.Context, groupID, channelID, messageID, text string) error {
	return p.record(Call{Op: "edit", GroupID: groupID, ChannelID: channelID, MessageID: messageID, Text: text})
}

func (p *RecordingPlatform) GetAdministrators(ctx context.Context, groupID string) ([]string, error) {
	if err := p.record(Call{Op: "get_admins", GroupID: groupID}); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []string
	for id, ok := range p.admins[groupID] {
		if ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (p *RecordingPlatform) SendDirect(ctx context.Context, userID, text string) error {
	return p.record(Call{Op: "direct", UserID: userID, Text: text})
}
