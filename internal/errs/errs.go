// Package errs defines the typed error taxonomy shared across the raid
// finder: every failure mode carries a Kind so callers can branch with
// errors.Is instead of string matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure. Kinds are comparable and stable;
// callers match on them via KindOf (or errors.Is against an *Error of
// the same Kind), never on Error() text.
type Kind string

const (
	// Configuration
	KindMissingEnvVar Kind = "missing_env_var"

	// KV
	KindKVConnect     Kind = "kv_connect"
	KindKVGetConn     Kind = "kv_get_connection"
	KindKVGetValue    Kind = "kv_get_value"
	KindKVGetKeys     Kind = "kv_get_keys"
	KindKVSetValue    Kind = "kv_set_value"
	KindKVExpire      Kind = "kv_expire"

	// Transport
	KindCannotGetStream     Kind = "cannot_get_stream"
	KindBadResponse         Kind = "bad_response"
	KindStreamEOF           Kind = "stream_eof"
	KindStreamUnexpected    Kind = "stream_unexpected"
	KindInvalidHTTPMethod   Kind = "invalid_http_method"
	KindCannotBuildRequest  Kind = "cannot_build_request"

	// Parse
	KindJSONParse          Kind = "json_parse"
	KindCodecDecode        Kind = "codec_decode"
	KindCodecEncode        Kind = "codec_encode"
	KindStringFromBytes    Kind = "string_from_bytes"
	KindCannotParseTweet   Kind = "cannot_parse_tweet"

	// Image
	KindImageCannotGet   Kind = "image_cannot_get"
	KindBytesParseImage  Kind = "bytes_parse_image"
	KindImageParseBytes  Kind = "image_parse_bytes"
	KindImageToImageData Kind = "image_to_image_data"

	// Translation
	KindCannotTranslate Kind = "cannot_translate"

	// Server
	KindWSClientError Kind = "ws_client_error"
	KindWSClientClose Kind = "ws_client_close"
	KindHTTPRejection Kind = "http_rejection"

	// Actor
	KindActorTaskKilled Kind = "actor_task_killed"
)

// Error is the concrete error type carrying a Kind, a human message,
// and an optional inner cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so
// errors.Is(err, errs.New(KindBadResponse, "", nil)) style checks work.
// A bare Kind is not an error value; use KindOf to read it directly.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error of the given kind.
func New(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// KindOf reports the Kind of err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
