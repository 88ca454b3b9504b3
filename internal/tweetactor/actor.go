package tweetactor

import (
	"context"
	"time"

	"github.com/kestrel-raid/gbf-raidfinder/internal/codec"
	"github.com/kestrel-raid/gbf-raidfinder/internal/errs"
	"github.com/kestrel-raid/gbf-raidfinder/internal/kv"
	"github.com/kestrel-raid/gbf-raidfinder/internal/model"
	"github.com/kestrel-raid/gbf-raidfinder/internal/raidparse"
)

// GranblueSource is the exact `source` field value the pipeline only
// processes tweets from.
const GranblueSource = `<a href="http://granbluefantasy.jp/" rel="nofollow">グランブルー ファンタジー</a>`

// mailboxSize is the actor's bounded mailbox depth.
const mailboxSize = 1024

type parseTweetReq struct {
	status model.RaidInvitationStatus
	reply  chan parseTweetResp
}

type parseTweetResp struct {
	raw model.RaidBossRaw
	inv model.RaidInvitation
	err error
}

type translateBossNameReq struct {
	raw   model.RaidBossRaw
	reply chan Outcome
}

type translateTweetReq struct {
	raw     model.RaidBossRaw
	inv     model.RaidInvitation
	outcome Outcome
	reply   chan translateTweetResp
}

type translateTweetResp struct {
	inv model.RaidInvitation
	err error
}

type persistRaidTweetReq struct {
	inv   model.RaidInvitation
	reply chan model.RaidInvitation
}

type message struct {
	parseTweet        *parseTweetReq
	translateBossName *translateBossNameReq
	translateTweet    *translateTweetReq
	persistRaidTweet  *persistRaidTweetReq
}

// Actor serializes all access to the translator map and the KV writes
// that depend on it, processing messages strictly in receipt order.
type Actor struct {
	kv      *kv.Client
	tmap    *TranslatorMap
	spawn   func(raw model.RaidBossRaw)
	mailbox chan message
}

// New builds an Actor. spawnWorker is called (at most once per
// boss-name, per the reservation invariant) whenever a translation must
// be initiated; it is injected so this package never imports the
// translator worker package, which in turn depends on TranslatorMap.
func New(kvClient *kv.Client, tmap *TranslatorMap, spawnWorker func(model.RaidBossRaw)) *Actor {
	return &Actor{
		kv:      kvClient,
		tmap:    tmap,
		spawn:   spawnWorker,
		mailbox: make(chan message, mailboxSize),
	}
}

// Run drains the mailbox until ctx is cancelled. It must run in its own
// goroutine; all other Actor methods are safe to call concurrently from
// any number of goroutines.
func (a *Actor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.mailbox:
			a.handle(ctx, msg)
		}
	}
}

func (a *Actor) handle(ctx context.Context, msg message) {
	switch {
	case msg.parseTweet != nil:
		a.handleParseTweet(ctx, msg.parseTweet)
	case msg.translateBossName != nil:
		a.handleTranslateBossName(msg.translateBossName)
	case msg.translateTweet != nil:
		a.handleTranslateTweet(msg.translateTweet)
	case msg.persistRaidTweet != nil:
		a.handlePersistRaidTweet(ctx, msg.persistRaidTweet)
	}
}

func (a *Actor) handleParseTweet(ctx context.Context, req *parseTweetReq) {
	if req.status.Source != GranblueSource {
		req.reply <- parseTweetResp{err: errs.New(errs.KindCannotParseTweet, "source mismatch", nil)}
		return
	}
	raw, inv, ok := raidparse.Parse(req.status)
	if !ok {
		req.reply <- parseTweetResp{err: errs.New(errs.KindCannotParseTweet, "no template match", nil)}
		return
	}
	key := codec.RawBossKey(raw.Language, raw.Level, raw.BossName)
	if err := a.kv.SetBytes(ctx, key, codec.EncodeRaidBossRaw(raw), codec.RawBossTTLSeconds*time.Second); err != nil {
		req.reply <- parseTweetResp{err: err}
		return
	}
	req.reply <- parseTweetResp{raw: raw, inv: inv}
}

func (a *Actor) handleTranslateBossName(req *translateBossNameReq) {
	if outcome, found := a.tmap.Lookup(req.raw.BossName); found {
		req.reply <- outcome
		return
	}
	a.tmap.ReservePending(req.raw.BossName)
	req.reply <- Pending()
	a.spawn(req.raw)
}

func (a *Actor) handleTranslateTweet(req *translateTweetReq) {
	inv := req.inv
	if req.raw.Language == model.Japanese {
		req.reply <- translateTweetResp{inv: inv}
		return
	}
	if req.outcome.IsPending() {
		req.reply <- translateTweetResp{err: errs.New(errs.KindCannotTranslate, req.raw.BossName, nil)}
		return
	}
	inv.BossName = req.outcome.Name()
	req.reply <- translateTweetResp{inv: inv}
}

func (a *Actor) handlePersistRaidTweet(ctx context.Context, req *persistRaidTweetReq) {
	inv := req.inv
	req.reply <- inv
	go func() {
		key := codec.PersistenceKey(inv.BossName, inv.TweetID, inv.Created)
		_ = a.kv.SetBytes(context.WithoutCancel(ctx), key, codec.EncodeRaidInvitation(inv), codec.PersistenceTTLSeconds*time.Second)
	}()
}

// ParseTweet sends a ParseTweet request and blocks for the reply.
func (a *Actor) ParseTweet(ctx context.Context, status model.RaidInvitationStatus) (model.RaidBossRaw, model.RaidInvitation, error) {
	reply := make(chan parseTweetResp, 1)
	msg := message{parseTweet: &parseTweetReq{status: status, reply: reply}}
	select {
	case a.mailbox <- msg:
	case <-ctx.Done():
		return model.RaidBossRaw{}, model.RaidInvitation{}, errs.New(errs.KindActorTaskKilled, "send", ctx.Err())
	}
	select {
	case resp := <-reply:
		return resp.raw, resp.inv, resp.err
	case <-ctx.Done():
		return model.RaidBossRaw{}, model.RaidInvitation{}, errs.New(errs.KindActorTaskKilled, "recv", ctx.Err())
	}
}

// TranslateBossName looks up (or reserves and kicks off translation
// for) raw's boss name.
func (a *Actor) TranslateBossName(ctx context.Context, raw model.RaidBossRaw) (Outcome, error) {
	reply := make(chan Outcome, 1)
	msg := message{translateBossName: &translateBossNameReq{raw: raw, reply: reply}}
	select {
	case a.mailbox <- msg:
	case <-ctx.Done():
		return Outcome{}, errs.New(errs.KindActorTaskKilled, "send", ctx.Err())
	}
	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return Outcome{}, errs.New(errs.KindActorTaskKilled, "recv", ctx.Err())
	}
}

// TranslateTweet applies outcome to inv's boss name: Japanese-origin
// invitations pass through unchanged; English-origin invitations adopt
// the resolved Japanese name once translation has succeeded, or fail if
// translation is still pending.
func (a *Actor) TranslateTweet(ctx context.Context, raw model.RaidBossRaw, inv model.RaidInvitation, outcome Outcome) (model.RaidInvitation, error) {
	reply := make(chan translateTweetResp, 1)
	msg := message{translateTweet: &translateTweetReq{raw: raw, inv: inv, outcome: outcome, reply: reply}}
	select {
	case a.mailbox <- msg:
	case <-ctx.Done():
		return model.RaidInvitation{}, errs.New(errs.KindActorTaskKilled, "send", ctx.Err())
	}
	select {
	case resp := <-reply:
		return resp.inv, resp.err
	case <-ctx.Done():
		return model.RaidInvitation{}, errs.New(errs.KindActorTaskKilled, "recv", ctx.Err())
	}
}

// PersistRaidTweet replies immediately with inv while writing it to the
// KV store in the background.
func (a *Actor) PersistRaidTweet(ctx context.Context, inv model.RaidInvitation) (model.RaidInvitation, error) {
	reply := make(chan model.RaidInvitation, 1)
	msg := message{persistRaidTweet: &persistRaidTweetReq{inv: inv, reply: reply}}
	select {
	case a.mailbox <- msg:
	case <-ctx.Done():
		return model.RaidInvitation{}, errs.New(errs.KindActorTaskKilled, "send", ctx.Err())
	}
	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return model.RaidInvitation{}, errs.New(errs.KindActorTaskKilled, "recv", ctx.Err())
	}
}
