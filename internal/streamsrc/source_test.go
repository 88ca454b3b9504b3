package streamsrc

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-raid/gbf-raidfinder/internal/errs"
)

func newReq(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	return req
}

func TestOpenAndNextYieldsStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"id":1,"text":"hello","source":"x","timestamp_ms":"1","user":{"screen_name":"a","profile_image_url":""},"entities":{}}`)
		fmt.Fprintln(w, ``) // stall-warning keep-alive blank line
		fmt.Fprintln(w, `{"id":2,"text":"world","source":"x","timestamp_ms":"2","user":{"screen_name":"b","profile_image_url":""},"entities":{}}`)
	}))
	defer srv.Close()

	src, err := Open(context.Background(), srv.Client(), newReq(t, srv.URL))
	require.NoError(t, err)
	defer src.Close()

	first, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.ID)
	assert.Equal(t, "hello", first.Text)

	second, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.ID)
	assert.Equal(t, "world", second.Text)

	_, err = src.Next()
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindStreamEOF, kind)
}

func TestOpenReturnsBadResponseOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := Open(context.Background(), srv.Client(), newReq(t, srv.URL))
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindBadResponse, kind)
}

func TestNextReturnsJSONParseOnMalformedLine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `not json`)
	}))
	defer srv.Close()

	src, err := Open(context.Background(), srv.Client(), newReq(t, srv.URL))
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next()
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindJSONParse, kind)
}

func TestCloseCancelsInFlightRequest(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		flusher, _ := w.(http.Flusher)
		if flusher != nil {
			flusher.Flush()
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	src, err := Open(context.Background(), srv.Client(), newReq(t, srv.URL))
	require.NoError(t, err)
	<-started

	require.NoError(t, src.Close())
}
