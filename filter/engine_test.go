package filter

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"guardbot/model"
	"guardbot/utils/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *database.Store) {
	t.Helper()
	store, err := database.Open(filepath.Join(t.TempDir(), "filter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	e, err := NewEngine(store, model.DefaultModerationConfig())
	require.NoError(t, err)
	return e, store
}

func TestEngineRegexRoundTrip(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	group := model.NewGroup("g1", "", time.Now())

	_, err := e.AddPattern(ctx, "g1", "(unclosed", true)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindConfig))

	words, err := store.BlockedWords(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, words)

	added, err := e.AddPattern(ctx, "g1", "^spam.*", true)
	require.NoError(t, err)
	assert.True(t, added)

	d, err := e.Evaluate(ctx, group, testMessage("Spammy text"), false, noon)
	require.NoError(t, err)
	assert.Equal(t, model.RuleBlockedWord, d.Rule)

	d, err = e.Evaluate(ctx, group, testMessage("(unclosed"), false, noon)
	require.NoError(t, err)
	assert.Equal(t, model.Allow, d.Kind)

	added, err = e.AddPattern(ctx, "g1", "^spam.*", true)
	require.NoError(t, err)
	assert.False(t, added)

	removed, err := e.RemovePattern(ctx, "g1", "^spam.*")
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestEngineSkipsCorruptStoredPattern(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	// Written behind the engine's back, as an older release might have.
	_, err := store.AddBlockedWord(ctx, model.BlockedWord{GroupID: "g1", Word: "(broken", IsRegex: true})
	require.NoError(t, err)
	_, err = store.AddBlockedWord(ctx, model.BlockedWord{GroupID: "g1", Word: "badword1"})
	require.NoError(t, err)

	rs, err := e.RuleSet(ctx, model.NewGroup("g1", "", time.Now()))
	require.NoError(t, err)
	require.Len(t, rs.Patterns, 1)
	assert.Equal(t, "badword1", rs.Patterns[0].Word)
}

func TestEngineMediaFromStore(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, store.SetMediaSetting(ctx, model.MediaSetting{GroupID: "g1", MediaType: model.MediaGIF, Allowed: false}))

	msg := testMessage("")
	msg.MediaType = model.MediaGIF
	d, err := e.Evaluate(ctx, model.NewGroup("g1", "", time.Now()), msg, false, noon)
	require.NoError(t, err)
	assert.Equal(t, model.RuleMedia, d.Rule)
}
