// Package streamsrc exposes a lazy, finite-but-long-lived sequence of
// RaidInvitationStatus values read from a chunked HTTP streaming
// response.
package streamsrc

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"

	"github.com/kestrel-raid/gbf-raidfinder/internal/errs"
	"github.com/kestrel-raid/gbf-raidfinder/internal/model"
)

// maxLineBytes bounds the per-chunk scan buffer to 16 KiB.
const maxLineBytes = 16 * 1024

// Source is a single-use, cancellable NDJSON stream.
type Source struct {
	resp    *http.Response
	scanner *bufio.Scanner
	cancel  context.CancelFunc
}

// Open issues req exactly once and returns a Source ready to be read
// with Next. The request must already carry its signed Authorization
// header (see internal/oauth).
func Open(ctx context.Context, client *http.Client, req *http.Request) (*Source, error) {
	ctx, cancel := context.WithCancel(ctx)
	req = req.WithContext(ctx)

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, errs.New(errs.KindCannotGetStream, "do request", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		cancel()
		return nil, errs.New(errs.KindBadResponse, resp.Status, nil)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, maxLineBytes), maxLineBytes)

	return &Source{resp: resp, scanner: scanner, cancel: cancel}, nil
}

// Next blocks until the next newline-framed JSON status is available,
// skipping blank keep-alive lines. It returns errs.KindStreamEOF on a
// clean close mid-stream, or errs.KindStreamUnexpected/JSONParse on
// other failures.
func (s *Source) Next() (model.RaidInvitationStatus, error) {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue // stall-warning keep-alive newline
		}
		var status model.RaidInvitationStatus
		if err := json.Unmarshal(line, &status); err != nil {
			return model.RaidInvitationStatus{}, errs.New(errs.KindJSONParse, "unmarshal status", err)
		}
		return status, nil
	}
	if err := s.scanner.Err(); err != nil {
		return model.RaidInvitationStatus{}, errs.New(errs.KindStreamUnexpected, "scan", err)
	}
	return model.RaidInvitationStatus{}, errs.New(errs.KindStreamEOF, "stream closed", nil)
}

// Close cancels the in-flight request and releases the response body.
func (s *Source) Close() error {
	s.cancel()
	return s.resp.Body.Close()
}
