// Package pipeline wraps the end-to-end stream consumption in a
// retrying, timeout-guarded loop.
package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kestrel-raid/gbf-raidfinder/internal/errs"
	"github.com/kestrel-raid/gbf-raidfinder/internal/model"
	"github.com/kestrel-raid/gbf-raidfinder/internal/streamsrc"
	"github.com/kestrel-raid/gbf-raidfinder/internal/subscriber"
	"github.com/kestrel-raid/gbf-raidfinder/internal/tweetactor"
)

// itemTimeout bounds how long a single status may take to flow through
// parse→translate→persist→broadcast before being skipped.
const itemTimeout = 5 * time.Second

// RequestFactory builds a freshly signed streaming request each time the
// driver needs to (re)connect — nonce/timestamp must differ per attempt.
type RequestFactory func() (*http.Request, error)

// Driver owns one stream connection's retry lifecycle.
type Driver struct {
	client     *http.Client
	newRequest RequestFactory
	actor      *tweetactor.Actor
	registry   *subscriber.Registry
}

// New builds a Driver.
func New(client *http.Client, newRequest RequestFactory, actor *tweetactor.Actor, registry *subscriber.Registry) *Driver {
	return &Driver{client: client, newRequest: newRequest, actor: actor, registry: registry}
}

// backoffFor returns the fixed per-error-kind pause before reconnecting,
// and whether the error is retriable at all.
func backoffFor(kind errs.Kind) (time.Duration, bool) {
	switch kind {
	case errs.KindStreamUnexpected:
		return 5 * time.Second, true
	case errs.KindBadResponse:
		return 5 * time.Second, true
	case errs.KindStreamEOF:
		return 1 * time.Second, true
	default:
		return 0, false
	}
}

// Run drives the stream until ctx is cancelled or a fatal (non-retriable)
// error occurs, in which case it returns that error.
func (d *Driver) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := d.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		kind, _ := errs.KindOf(err)
		backoff, retriable := backoffFor(kind)
		if !retriable {
			return err
		}
		slog.Warn("pipeline: reconnecting", "err", err, "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// runOnce opens one stream connection and consumes it until a
// connection-level error or ctx cancellation.
func (d *Driver) runOnce(ctx context.Context) error {
	req, err := d.newRequest()
	if err != nil {
		return err
	}
	src, err := streamsrc.Open(ctx, d.client, req)
	if err != nil {
		return err
	}
	defer src.Close()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		status, err := src.Next()
		if err != nil {
			kind, ok := errs.KindOf(err)
			if ok && (kind == errs.KindStreamUnexpected || kind == errs.KindStreamEOF || kind == errs.KindBadResponse) {
				return err
			}
			continue
		}
		d.processItem(ctx, status)
	}
}

// processItem runs the parse→translate→persist→broadcast chain for one
// status under a 5s timeout; failures and timeouts skip the item
// without affecting the connection.
func (d *Driver) processItem(ctx context.Context, status model.RaidInvitationStatus) {
	itemCtx, cancel := context.WithTimeout(ctx, itemTimeout)
	defer cancel()

	raw, inv, err := d.actor.ParseTweet(itemCtx, status)
	if err != nil {
		return
	}
	outcome, err := d.actor.TranslateBossName(itemCtx, raw)
	if err != nil {
		return
	}
	inv2, err := d.actor.TranslateTweet(itemCtx, raw, inv, outcome)
	if err != nil {
		return
	}
	inv3, err := d.actor.PersistRaidTweet(itemCtx, inv2)
	if err != nil {
		return
	}
	go d.registry.Broadcast(inv3)
}
