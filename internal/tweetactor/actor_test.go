package tweetactor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-raid/gbf-raidfinder/internal/codec"
	"github.com/kestrel-raid/gbf-raidfinder/internal/errs"
	"github.com/kestrel-raid/gbf-raidfinder/internal/kv"
	"github.com/kestrel-raid/gbf-raidfinder/internal/model"
)

func newTestKV(t *testing.T) *kv.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return kv.NewFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

type spawnRecorder struct {
	mu    sync.Mutex
	calls []model.RaidBossRaw
}

func (s *spawnRecorder) spawn(raw model.RaidBossRaw) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, raw)
}

func (s *spawnRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func startActor(t *testing.T, kvClient *kv.Client, tmap *TranslatorMap, spawn func(model.RaidBossRaw)) (*Actor, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	actor := New(kvClient, tmap, spawn)
	go actor.Run(ctx)
	return actor, ctx
}

func TestParseTweetValid(t *testing.T) {
	kvClient := newTestKV(t)
	actor, ctx := startActor(t, kvClient, NewTranslatorMap(nil), func(model.RaidBossRaw) {})

	status := model.RaidInvitationStatus{
		ID:          1,
		Source:      GranblueSource,
		TimestampMs: "1609459200000",
		Text:        "AB12CD34 :Battle ID\nI need backup!\nLvl 120 Proto Bahamut\nhttps://example.com",
		Entities:    model.Entities{Media: []model.Media{{MediaURL: "https://example.com/boss.jpg"}}},
	}

	raw, inv, err := actor.ParseTweet(ctx, status)
	require.NoError(t, err)
	assert.Equal(t, model.English, raw.Language)
	assert.Equal(t, uint64(1), inv.TweetID)

	key := codec.RawBossKey(raw.Language, raw.Level, raw.BossName)
	stored, err := kvClient.GetBytes(ctx, key)
	require.NoError(t, err)
	assert.NotEmpty(t, stored)
}

func TestParseTweetWrongSourceFails(t *testing.T) {
	kvClient := newTestKV(t)
	actor, ctx := startActor(t, kvClient, NewTranslatorMap(nil), func(model.RaidBossRaw) {})

	status := model.RaidInvitationStatus{Source: "some other client"}
	_, _, err := actor.ParseTweet(ctx, status)
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindCannotParseTweet, kind)
}

func TestTranslateBossNameReservesAndSpawnsOnce(t *testing.T) {
	kvClient := newTestKV(t)
	spawner := &spawnRecorder{}
	actor, ctx := startActor(t, kvClient, NewTranslatorMap(nil), spawner.spawn)

	raw := model.RaidBossRaw{BossName: "Proto Bahamut", Level: 120, Language: model.English}
	outcome, err := actor.TranslateBossName(ctx, raw)
	require.NoError(t, err)
	assert.True(t, outcome.IsPending())

	outcome2, err := actor.TranslateBossName(ctx, raw)
	require.NoError(t, err)
	assert.True(t, outcome2.IsPending())

	assert.Equal(t, 1, spawner.count())
}

func TestTranslateTweetJapaneseBypassesOutcome(t *testing.T) {
	kvClient := newTestKV(t)
	actor, ctx := startActor(t, kvClient, NewTranslatorMap(nil), func(model.RaidBossRaw) {})

	raw := model.RaidBossRaw{BossName: "プロトバハムート", Language: model.Japanese}
	inv := model.RaidInvitation{BossName: "プロトバハムート", Language: model.Japanese}

	out, err := actor.TranslateTweet(ctx, raw, inv, Pending())
	require.NoError(t, err)
	assert.Equal(t, "プロトバハムート", out.BossName)
}

func TestTranslateTweetEnglishPendingFails(t *testing.T) {
	kvClient := newTestKV(t)
	actor, ctx := startActor(t, kvClient, NewTranslatorMap(nil), func(model.RaidBossRaw) {})

	raw := model.RaidBossRaw{BossName: "Proto Bahamut", Language: model.English}
	inv := model.RaidInvitation{BossName: "Proto Bahamut", Language: model.English}

	_, err := actor.TranslateTweet(ctx, raw, inv, Pending())
	require.Error(t, err)
}

func TestTranslateTweetEnglishResolvedRenames(t *testing.T) {
	kvClient := newTestKV(t)
	actor, ctx := startActor(t, kvClient, NewTranslatorMap(nil), func(model.RaidBossRaw) {})

	raw := model.RaidBossRaw{BossName: "Proto Bahamut", Language: model.English}
	inv := model.RaidInvitation{BossName: "Proto Bahamut", Language: model.English}

	out, err := actor.TranslateTweet(ctx, raw, inv, Success("プロトバハムート"))
	require.NoError(t, err)
	assert.Equal(t, "プロトバハムート", out.BossName)
}

func TestPersistRaidTweetWritesAsynchronously(t *testing.T) {
	kvClient := newTestKV(t)
	actor, ctx := startActor(t, kvClient, NewTranslatorMap(nil), func(model.RaidBossRaw) {})

	inv := model.RaidInvitation{BossName: "Proto Bahamut", TweetID: 42, Created: 1609459200000}
	out, err := actor.PersistRaidTweet(ctx, inv)
	require.NoError(t, err)
	assert.Equal(t, inv, out)

	key := codec.PersistenceKey(inv.BossName, inv.TweetID, inv.Created)
	assert.Eventually(t, func() bool {
		v, err := kvClient.GetBytes(context.Background(), key)
		return err == nil && len(v) > 0
	}, time.Second, 10*time.Millisecond)
}

func TestParseTweetReturnsErrorWhenActorNotRunning(t *testing.T) {
	kvClient := newTestKV(t)
	actor := New(kvClient, NewTranslatorMap(nil), func(model.RaidBossRaw) {})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := actor.ParseTweet(ctx, model.RaidInvitationStatus{})
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindActorTaskKilled, kind)
}
