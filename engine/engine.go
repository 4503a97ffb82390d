package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"guardbot/dispatch"
	"guardbot/filter"
	"guardbot/flood"
	"guardbot/model"
	"guardbot/moderation"
	"guardbot/utils"
	"guardbot/utils/database"
	"guardbot/utils/logger"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// Store is the slice of the policy store the engine touches directly.
type Store interface {
	model.GroupStore
	SetMediaSetting(ctx context.Context, m model.MediaSetting) error
	ClearMediaSetting(ctx context.Context, groupID, mediaType string) error
	GetGroupStats(ctx context.Context, groupID string) (database.GroupStats, error)
}

// Deps are the components the engine routes events through.
type Deps struct {
	Store      Store
	Filter     *filter.Engine
	Flood      *flood.Detector
	Machine    *moderation.Machine
	Dispatcher *dispatch.Dispatcher
}

// Engine is the single entry point for inbound events.
type Engine struct {
	Deps
	cfg      model.ModerationConfig
	seen     *expirable.LRU[string, struct{}]
	locks    *utils.KeyedMutex
	commands map[string]commandFunc
	log      *zap.Logger

	// Submit queues
	baseCtx      context.Context
	cancel       context.CancelFunc
	eventTimeout time.Duration
	qmu          sync.Mutex
	queues       map[string]*keyQueue
	closing      bool
	wg           sync.WaitGroup
}

const defaultEventTimeout = 30 * time.Second

func New(deps Deps, cfg model.ModerationConfig) *Engine {
	size := cfg.DedupeSize
	if size <= 0 {
		size = 10000
	}
	ttl := cfg.EventDedupeTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		Deps:         deps,
		cfg:          cfg,
		seen:         expirable.NewLRU[string, struct{}](size, nil, ttl),
		locks:        utils.NewKeyedMutex(),
		log:          logger.Named("engine"),
		baseCtx:      ctx,
		cancel:       cancel,
		eventTimeout: defaultEventTimeout,
		queues:       make(map[string]*keyQueue),
	}
	e.commands = e.commandTable()
	return e
}

// Handle processes one event to completion. Events for the same (group, user)
// key never run concurrently. A redelivered event that already completed
// returns model.ErrDuplicateEvent and has no effect.
func (e *Engine) Handle(ctx context.Context, ev model.Event) (err error) {
	kind := ev.Kind.String()
	start := time.Now()
	defer func() {
		eventDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	unlock := e.locks.Lock(ev.Key())
	defer unlock()

	if ev.ID != "" {
		if _, ok := e.seen.Get(ev.ID); ok {
			e.log.Debug("duplicate event skipped", zap.String("event_id", ev.ID), zap.String("event_kind", kind))
			return model.ErrDuplicateEvent
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while handling event: %v", r)
		}
		eventsProcessed.WithLabelValues(kind).Inc()
		if err != nil {
			eventErrors.WithLabelValues(kind, model.KindOf(err).String()).Inc()
			e.eventLogger(ev).Error("failed to handle event", zap.Error(err))
			return
		}
		if ev.ID != "" {
			e.seen.Add(ev.ID, struct{}{})
		}
	}()

	return e.route(ctx, ev)
}

func (e *Engine) eventLogger(ev model.Event) *zap.Logger {
	return e.log.With(
		zap.String("group", ev.GroupID),
		zap.String("user", ev.User.ID),
		zap.String("event_kind", ev.Kind.String()),
		zap.String("event_id", ev.ID),
	)
}

func (e *Engine) route(ctx context.Context, ev model.Event) error {
	if ev.GroupID == "" {
		return nil
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	group, err := e.Store.EnsureGroup(ctx, ev.GroupID, ev.GroupTitle, ev.Timestamp)
	if err != nil {
		return err
	}
	t := model.Target{GroupID: ev.GroupID, ChannelID: ev.ChannelID, UserID: ev.User.ID, MessageID: ev.MessageID}

	switch ev.Kind {
	case model.MessageReceived:
		return e.handleMessage(ctx, group, t, ev)
	case model.UserJoined:
		decisions, err := e.Machine.Join(ctx, group, t, ev.User, ev.Timestamp)
		if err != nil {
			return err
		}
		return e.apply(ctx, ev, t, decisions, false)
	case model.UserLeft:
		decisions, err := e.Machine.Leave(ctx, group, t, ev.User)
		if err != nil {
			return err
		}
		return e.apply(ctx, ev, t, decisions, false)
	case model.ButtonPressed:
		decisions, err := e.Machine.VerifyCaptcha(ctx, group, t, ev.User, ev.Callback)
		if err != nil {
			return err
		}
		return e.apply(ctx, ev, t, decisions, false)
	case model.CommandInvoked:
		return e.handleCommand(ctx, group, t, ev)
	default:
		e.eventLogger(ev).Warn("unknown event kind")
		return nil
	}
}

// handleMessage runs the posting gate, the flood detector and the content
// filter in that order. The first terminal decision wins.
func (e *Engine) handleMessage(ctx context.Context, g model.Group, t model.Target, ev model.Event) error {
	if ev.User.ID == "" {
		return nil
	}
	isAdmin, err := e.Dispatcher.IsAdmin(ctx, g.ChatID, ev.User.ID)
	if err != nil {
		return model.PlatformError("failed to resolve admin rights", err)
	}

	d, err := e.Machine.PostingGate(ctx, g, t, ev.User, isAdmin)
	if err != nil {
		return err
	}
	if d.IsTerminal() {
		return e.apply(ctx, ev, t, []model.Decision{d}, false)
	}

	if g.AntiFloodEnabled && !isAdmin {
		v, err := e.Flood.Observe(ctx, g.ChatID, ev.User.ID, ev.Timestamp)
		if err != nil {
			// fail open: a store outage must not silence the group
			e.eventLogger(ev).Warn("flood check skipped", zap.Error(err))
		}
		if v == flood.Flood {
			floodDetections.Inc()
			return e.apply(ctx, ev, t, []model.Decision{e.Flood.MuteDecision(t, ev.User)}, false)
		}
	}

	msg := filter.Message{Target: t, Sender: ev.User, Text: ev.Text, MediaType: ev.MediaType}
	d, err = e.Filter.Evaluate(ctx, g, msg, isAdmin, ev.Timestamp.Local())
	if err != nil {
		return err
	}
	if d.IsTerminal() {
		return e.apply(ctx, ev, t, []model.Decision{d}, false)
	}
	return nil
}

// apply dispatches decisions in order and stops at the first failure. When
// surface is set a platform failure is also reported to the invoker.
func (e *Engine) apply(ctx context.Context, ev model.Event, t model.Target, decisions []model.Decision, surface bool) error {
	for i, d := range decisions {
		d = d.WithID(ev.ID, i)
		if err := e.Dispatcher.Apply(ctx, d); err != nil {
			if surface && model.IsKind(err, model.KindPlatform) {
				e.replyError(ctx, ev, t, err)
			}
			return err
		}
	}
	return nil
}

func (e *Engine) replyError(ctx context.Context, ev model.Event, t model.Target, err error) {
	d := model.ReplyDecision(t, model.UserMessage(err))
	if model.IsKind(err, model.KindPlatform) {
		// platform text is not ours, render it escaped
		d.Text = "{reason}"
		d.Reason = model.UserMessage(err)
	}
	if rerr := e.Dispatcher.Apply(ctx, d); rerr != nil {
		e.eventLogger(ev).Warn("failed to send error reply", zap.Error(rerr))
	}
}

// Close stops accepting submissions and waits for queued events to finish.
func (e *Engine) Close() {
	e.qmu.Lock()
	e.closing = true
	e.qmu.Unlock()
	e.wg.Wait()
	e.cancel()
}
