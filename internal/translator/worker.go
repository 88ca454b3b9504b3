// Package translator implements the single-shot async worker that
// resolves a freshly observed raw boss's name against same-level
// candidates in the opposite language via perceptual image matching.
package translator

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kestrel-raid/gbf-raidfinder/internal/codec"
	"github.com/kestrel-raid/gbf-raidfinder/internal/imagematch"
	"github.com/kestrel-raid/gbf-raidfinder/internal/kv"
	"github.com/kestrel-raid/gbf-raidfinder/internal/model"
	"github.com/kestrel-raid/gbf-raidfinder/internal/tweetactor"
)

// Spawn starts the seven-step translation procedure in its own
// goroutine and returns immediately, so it never blocks its caller
// (tweetactor.Actor, via the spawnWorker callback).
func Spawn(ctx context.Context, client *http.Client, kvClient *kv.Client, tmap *tweetactor.TranslatorMap, raw model.RaidBossRaw) {
	go run(ctx, client, kvClient, tmap, raw)
}

func run(ctx context.Context, client *http.Client, kvClient *kv.Client, tmap *tweetactor.TranslatorMap, raw model.RaidBossRaw) {
	ok, err := resolve(ctx, client, kvClient, tmap, raw)
	if err != nil {
		slog.Warn("translator: failed", "boss", raw.BossName, "level", raw.Level, "err", err)
	}
	if !ok {
		tmap.ReleasePending(raw.BossName)
	}
}

func resolve(ctx context.Context, client *http.Client, kvClient *kv.Client, tmap *tweetactor.TranslatorMap, raw model.RaidBossRaw) (bool, error) {
	opposite := raw.Language.Opposite()

	// 1. List same-level candidates in the opposite language.
	pattern := codec.PossibleMatchPattern(opposite, raw.Level)
	keys, err := kvClient.Keys(ctx, pattern)
	if err != nil {
		return false, err
	}
	if len(keys) == 0 {
		return false, nil
	}

	// 2. Exclude keys whose boss-name is already resolved in the map.
	filtered := keys[:0]
	for _, k := range keys {
		name := bossNameFromRawKey(k)
		if outcome, found := tmap.Lookup(name); found && !outcome.IsPending() {
			continue
		}
		filtered = append(filtered, k)
	}
	if len(filtered) == 0 {
		return false, nil
	}

	// 3. Multi-get and decode candidates.
	blobs, err := kvClient.MGetBytes(ctx, filtered)
	if err != nil {
		return false, err
	}
	candidates := make([]model.RaidBossRaw, 0, len(blobs))
	for _, b := range blobs {
		c, err := codec.DecodeRaidBossRaw(b)
		if err != nil {
			continue
		}
		candidates = append(candidates, c)
	}

	// 4. Perceptual comparison.
	match, found, err := imagematch.Compare(ctx, client, raw, candidates)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	// 5. Insert symmetric in-memory entries, then mirror to the KV
	// store — the write lock only covered the in-memory mutation.
	tmap.Resolve(raw.BossName, match.BossName)
	if err := kvClient.SetMultipleString(ctx, map[string]string{
		codec.TranslatorKey(raw.BossName):  match.BossName,
		codec.TranslatorKey(match.BossName): raw.BossName,
	}); err != nil {
		return true, err
	}
	slog.Info("translator: matched", "from", raw.BossName, "to", match.BossName, "level", raw.Level)

	// 6. Build the paired boss with canonical ordering (en first).
	var paired model.RaidBoss
	if raw.Language == model.English {
		paired = model.RaidBoss{ENName: raw.BossName, JPName: match.BossName, Level: raw.Level, Image: raw.Image}
	} else {
		paired = model.RaidBoss{ENName: match.BossName, JPName: raw.BossName, Level: raw.Level, Image: raw.Image}
	}
	if paired.JPName == "" {
		return true, nil
	}

	// 7. Write the paired record under both language-variant keys, per
	// the RaidBoss data-model invariant that both are addressable.
	encoded := codec.EncodeRaidBoss(paired)
	if err := kvClient.SetBytes(ctx, codec.PairedBossKey(paired.Level, paired.JPName), encoded, codec.RawBossTTLSeconds*time.Second); err != nil {
		return true, err
	}
	if err := kvClient.SetBytes(ctx, codec.PairedBossKey(paired.Level, paired.ENName), encoded, codec.RawBossTTLSeconds*time.Second); err != nil {
		return true, err
	}
	return true, nil
}

// bossNameFromRawKey extracts the trailing {boss_name} segment from a
// "gbf:{lang}:{level}.{boss_name}" key.
func bossNameFromRawKey(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '.' {
			return key[i+1:]
		}
	}
	return key
}
