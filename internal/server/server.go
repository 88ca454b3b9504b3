// Package server exposes the REST catalog/history surface, the
// WebSocket subscriber endpoint, and the liveness watchdog.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kestrel-raid/gbf-raidfinder/internal/codec"
	"github.com/kestrel-raid/gbf-raidfinder/internal/kv"
	"github.com/kestrel-raid/gbf-raidfinder/internal/subscriber"
)

// watchdogStaleAfter is the liveness window: /healthz reports an error
// once more than this long has elapsed since the last call (21 whole
// seconds or more; exactly 20 is still OK).
const watchdogStaleAfter = 20 * time.Second

// Server serves the REST/WS surface over a shared KV client and
// subscriber registry.
type Server struct {
	kv       *kv.Client
	registry *subscriber.Registry
	upgrader websocket.Upgrader

	watchdog atomic.Int64 // unix seconds of last /healthz hit
}

// New builds a Server. Addr is not bound here; call ListenAndServe.
func New(kvClient *kv.Client, registry *subscriber.Registry) *Server {
	s := &Server{
		kv:       kvClient,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.watchdog.Store(time.Now().Unix())
	return s
}

// Handler returns the http.Handler for all endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/get_bosses", s.handleGetBosses)
	mux.HandleFunc("/get_persistence_boss", s.handleGetPersistenceBoss)
	mux.HandleFunc("/stream_bosses", s.handleStreamBosses)
	return mux
}

// ListenAndServe binds addr (spec: "0.0.0.0:50051") and serves until the
// process exits or the listener errors.
func (s *Server) ListenAndServe(addr string) error {
	slog.Info("server: listening", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	last := s.watchdog.Load()
	now := time.Now().Unix()
	s.watchdog.Store(now)

	if now-last >= 21 {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("error: " + strconv.FormatInt(now-last, 10)))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type getBossesRequest struct {
	Level uint32 `json:"level"`
}

func (s *Server) handleGetBosses(w http.ResponseWriter, r *http.Request) {
	var req getBossesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	keys, err := s.kv.Keys(r.Context(), codec.BossCatalogPattern(req.Level))
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	blobs, err := s.kv.MGetBytes(r.Context(), keys)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(blobs)
}

type getPersistenceBossRequest struct {
	BossNames []string `json:"boss_names"`
	Limit     uint32   `json:"limit"`
}

func (s *Server) handleGetPersistenceBoss(w http.ResponseWriter, r *http.Request) {
	var req getPersistenceBossRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	out := make(map[string][][]byte, len(req.BossNames))
	for _, name := range req.BossNames {
		if req.Limit == 0 {
			out[name] = nil
			continue
		}
		keys, err := s.kv.Keys(r.Context(), codec.PersistencePattern(name))
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		sortByCreatedDescending(keys)
		if uint32(len(keys)) > req.Limit {
			keys = keys[:req.Limit]
		}
		blobs, err := s.kv.MGetBytes(r.Context(), keys)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		out[name] = blobs
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// sortByCreatedDescending orders persistence keys
// ("gbf:persistence:{boss}.{tweet_id}.{created}") by the trailing
// {created} segment, descending (most recent first).
func sortByCreatedDescending(keys []string) {
	createdOf := func(key string) uint64 {
		idx := strings.LastIndexByte(key, '.')
		if idx < 0 {
			return 0
		}
		v, _ := strconv.ParseUint(key[idx+1:], 10, 64)
		return v
	}
	sort.Slice(keys, func(i, j int) bool {
		return createdOf(keys[i]) > createdOf(keys[j])
	})
}

type filterMessage struct {
	BossNames []string `json:"boss_names"`
}

func (s *Server) handleStreamBosses(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("server: ws upgrade failed", "err", err)
		return
	}

	sub, err := s.registry.Register()
	if err != nil {
		conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go s.writeLoop(ctx, conn, sub)
	s.readLoop(conn, sub)

	cancel()
	s.registry.Remove(sub.ID)
	conn.Close()
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, sub *subscriber.Subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-sub.Outbound:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		}
	}
}

func (s *Server) readLoop(conn *websocket.Conn, sub *subscriber.Subscriber) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			slog.Debug("server: ignoring non-text frame", "type", msgType)
			continue
		}
		if string(data) == "__PING__" {
			if err := conn.WriteMessage(websocket.TextMessage, []byte("__PONG__")); err != nil {
				return
			}
			continue
		}
		var filter filterMessage
		if err := json.Unmarshal(data, &filter); err != nil {
			slog.Debug("server: ignoring unrecognized frame", "data", string(data))
			continue
		}
		s.registry.UpdateFilter(sub.ID, filter.BossNames)
	}
}
