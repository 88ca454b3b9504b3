package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kestrel-raid/gbf-raidfinder/internal/codec"
	"github.com/kestrel-raid/gbf-raidfinder/internal/config"
	"github.com/kestrel-raid/gbf-raidfinder/internal/kv"
	"github.com/kestrel-raid/gbf-raidfinder/internal/logging"
	"github.com/kestrel-raid/gbf-raidfinder/internal/model"
	"github.com/kestrel-raid/gbf-raidfinder/internal/oauth"
	"github.com/kestrel-raid/gbf-raidfinder/internal/pipeline"
	"github.com/kestrel-raid/gbf-raidfinder/internal/server"
	"github.com/kestrel-raid/gbf-raidfinder/internal/subscriber"
	"github.com/kestrel-raid/gbf-raidfinder/internal/translator"
	"github.com/kestrel-raid/gbf-raidfinder/internal/tweetactor"
)

const (
	streamURL  = "https://stream.twitter.com/1.1/statuses/filter.json"
	serverAddr = "0.0.0.0:50051"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	closeLog, err := logging.Setup(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down...")
		cancel()
	}()

	kvClient, err := kv.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect kv: %w", err)
	}
	defer kvClient.Close()

	seed, err := loadTranslatorSeed(ctx, kvClient)
	if err != nil {
		return fmt.Errorf("seed translator map: %w", err)
	}
	tmap := tweetactor.NewTranslatorMap(seed)

	httpClient := &http.Client{Timeout: 30 * time.Second}

	actor := tweetactor.New(kvClient, tmap, func(raw model.RaidBossRaw) {
		translator.Spawn(ctx, httpClient, kvClient, tmap, raw)
	})
	go actor.Run(ctx)

	registry := subscriber.NewRegistry()

	srv := server.New(kvClient, registry)
	go func() {
		if err := srv.ListenAndServe(serverAddr); err != nil {
			slog.Error("server exited", "err", err)
		}
	}()

	signer := oauth.NewSigner()
	creds := oauth.Credentials{
		ConsumerKey:    cfg.TwitterAPIKey,
		ConsumerSecret: cfg.TwitterAPISecretKey,
		Token:          cfg.TwitterAccessToken,
		TokenSecret:    cfg.TwitterAccessTokenSecret,
	}
	newRequest := func() (*http.Request, error) {
		extra := oauth.Params{
			{Key: "stall_warning", Value: "true"},
			{Key: "track", Value: "参加者募集！,:参戦ID,I need backup!,:Battle ID"},
		}
		return signer.Sign(http.MethodPost, streamURL, extra, creds)
	}

	driver := pipeline.New(httpClient, newRequest, actor, registry)
	slog.Info("raidfinder started", "addr", serverAddr)
	return driver.Run(ctx)
}

// loadTranslatorSeed repopulates the translator map from the KV store's
// mirrored entries at startup. MGetString keeps values positionally
// aligned with keys, so a key evicted between the scan and the mget
// (rare: translator entries have no TTL) surfaces as an empty value at
// its own index instead of shifting every later pairing over by one.
func loadTranslatorSeed(ctx context.Context, kvClient *kv.Client) (map[string]string, error) {
	keys, err := kvClient.Keys(ctx, codec.TranslatorScanPattern())
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := kvClient.MGetString(ctx, keys)
	if err != nil {
		return nil, err
	}
	seed := make(map[string]string, len(keys))
	for i, key := range keys {
		if i >= len(values) || values[i] == "" {
			continue
		}
		name := key[len("gbf:translator:"):]
		seed[name] = values[i]
	}
	return seed, nil
}
