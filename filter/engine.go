package filter

import (
	"context"
	"regexp"
	"time"

	"guardbot/model"
	"guardbot/utils/logger"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Store is the slice of the policy store the filter reads and the block
// commands write through.
type Store interface {
	BlockedWords(ctx context.Context, groupID string) ([]model.BlockedWord, error)
	MediaSettings(ctx context.Context, groupID string) ([]model.MediaSetting, error)
	AddBlockedWord(ctx context.Context, w model.BlockedWord) (bool, error)
	RemoveBlockedWord(ctx context.Context, groupID, word string) (bool, error)
}

const regexCacheSize = 1024

// Engine loads rule sets from the store and evaluates messages against them.
type Engine struct {
	store Store
	cfg   model.ModerationConfig
	cache *lru.Cache[string, compiled]
	log   *zap.Logger
}

type compiled struct {
	re  *regexp.Regexp
	err error
}

// NewEngine builds a filter engine over store.
func NewEngine(store Store, cfg model.ModerationConfig) (*Engine, error) {
	cache, err := lru.New[string, compiled](regexCacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{
		store: store,
		cfg:   cfg,
		cache: cache,
		log:   logger.Named("filter"),
	}, nil
}

// Evaluate loads the group's rules and judges msg.
func (e *Engine) Evaluate(ctx context.Context, group model.Group, msg Message, senderIsAdmin bool, now time.Time) (model.Decision, error) {
	if senderIsAdmin {
		return model.AllowDecision(), nil
	}
	rs, err := e.RuleSet(ctx, group)
	if err != nil {
		return model.Decision{}, err
	}
	return Evaluate(rs, msg, senderIsAdmin, now), nil
}

// RuleSet assembles the rule set of a group. Stored regexes that do not
// compile are skipped and logged.
func (e *Engine) RuleSet(ctx context.Context, group model.Group) (RuleSet, error) {
	words, err := e.store.BlockedWords(ctx, group.ChatID)
	if err != nil {
		return RuleSet{}, err
	}
	settings, err := e.store.MediaSettings(ctx, group.ChatID)
	if err != nil {
		return RuleSet{}, err
	}

	rs := RuleSet{
		Group:        group,
		Patterns:     make([]Pattern, 0, len(words)),
		BannedLinks:  e.cfg.BannedLinks,
		Media:        make(map[string]model.MediaSetting, len(settings)),
		Action:       e.cfg.FilterAction,
		MuteDuration: e.cfg.FilterMuteDuration,
		NightPolicy:  e.cfg.NightModePolicy,
	}
	for _, w := range words {
		p := Pattern{Word: w.Word, IsRegex: w.IsRegex}
		if w.IsRegex {
			re, err := e.regex(w.Word)
			if err != nil {
				e.log.Warn("skipping stored pattern that does not compile",
					zap.String("group", group.ChatID), zap.Int64("id", w.ID), zap.Error(err))
				continue
			}
			p.Re = re
		}
		rs.Patterns = append(rs.Patterns, p)
	}
	for _, s := range settings {
		rs.Media[s.MediaType] = s
	}
	return rs, nil
}

func (e *Engine) regex(pattern string) (*regexp.Regexp, error) {
	if c, ok := e.cache.Get(pattern); ok {
		return c.re, c.err
	}
	re, err := compile(pattern)
	e.cache.Add(pattern, compiled{re: re, err: err})
	return re, err
}

// AddPattern validates and stores a blocked word. It reports false when the
// group already blocks it. Invalid patterns never reach the store.
func (e *Engine) AddPattern(ctx context.Context, groupID, word string, isRegex bool) (bool, error) {
	re, err := ValidatePattern(word, isRegex)
	if err != nil {
		return false, err
	}
	added, err := e.store.AddBlockedWord(ctx, model.BlockedWord{GroupID: groupID, Word: word, IsRegex: isRegex})
	if err != nil {
		return false, err
	}
	if re != nil {
		e.cache.Add(word, compiled{re: re})
	}
	return added, nil
}

// RemovePattern deletes a blocked word.
func (e *Engine) RemovePattern(ctx context.Context, groupID, word string) (bool, error) {
	return e.store.RemoveBlockedWord(ctx, groupID, word)
}

// Patterns lists the group's blocked words.
func (e *Engine) Patterns(ctx context.Context, groupID string) ([]model.BlockedWord, error) {
	return e.store.BlockedWords(ctx, groupID)
}
