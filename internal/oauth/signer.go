// Package oauth signs outbound streaming requests per OAuth 1.0a with
// HMAC-SHA1, computing the signature base string, the HMAC-SHA1
// signature, and the resulting Authorization header by hand.
package oauth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kestrel-raid/gbf-raidfinder/internal/errs"
)

// Credentials are the four OAuth 1.0a tokens needed to sign a request.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
}

// Param is one extra query parameter to carry on a signed request. Extra
// parameters are supplied as an ordered slice rather than url.Values so
// the final request URI preserves insertion order deterministically —
// url.Values is a map and Go randomizes map iteration order.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered list of extra query parameters.
type Params []Param

// Signer builds signed HTTP requests. Timestamp and nonce generation are
// overridable so tests can reproduce fixed reference vectors.
type Signer struct {
	Now      func() time.Time
	NonceGen func() (string, error)
}

// NewSigner returns a Signer with production defaults.
func NewSigner() *Signer {
	return &Signer{Now: time.Now, NonceGen: randomNonce}
}

func randomNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// unreserved is the percent-encoding exception set: A-Z a-z 0-9 - . _ ~
func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	}
	return false
}

// percentEncode implements RFC 5849's percent-encoding, which is a
// stricter subset of url.QueryEscape (space must become %20, not '+',
// and far fewer characters are left unescaped).
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// Sign builds a signed *http.Request suitable for the long-lived
// streaming connection.
func (s *Signer) Sign(method, rawURL string, extra Params, creds Credentials) (*http.Request, error) {
	method = strings.ToUpper(method)
	if method != http.MethodGet && method != http.MethodPost {
		return nil, errs.New(errs.KindInvalidHTTPMethod, method, nil)
	}

	nonce, err := s.NonceGen()
	if err != nil {
		return nil, errs.New(errs.KindCannotBuildRequest, "nonce", err)
	}
	timestamp := strconv.FormatInt(s.Now().Unix(), 10)

	// oauthParams holds only the oauth_* fields: these (plus
	// oauth_signature once computed) are what the Authorization header
	// is built from. The extra query parameters are folded in
	// separately below, only for the signature base string.
	oauthParams := map[string]string{
		"oauth_consumer_key":     creds.ConsumerKey,
		"oauth_nonce":            nonce,
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        timestamp,
		"oauth_token":            creds.Token,
		"oauth_version":          "1.0",
	}

	sigParams := make(map[string]string, len(oauthParams)+len(extra))
	for k, v := range oauthParams {
		sigParams[k] = v
	}
	for _, p := range extra {
		sigParams[p.Key] = p.Value
	}

	// Step 1: collect, percent-encode, sort, join.
	pairs := make([]string, 0, len(sigParams))
	for k, v := range sigParams {
		pairs = append(pairs, percentEncode(k)+"="+percentEncode(v))
	}
	sort.Strings(pairs)
	joined := strings.Join(pairs, "&")

	// Step 2: base string.
	baseString := method + "&" + percentEncode(rawURL) + "&" + percentEncode(joined)

	// Step 3: signing key.
	signingKey := percentEncode(creds.ConsumerSecret) + "&" + percentEncode(creds.TokenSecret)

	// Step 4: HMAC-SHA1 -> base64.
	mac := hmac.New(sha1.New, []byte(signingKey))
	mac.Write([]byte(baseString))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	oauthParams["oauth_signature"] = signature

	// Step 5: Authorization header, comma-joined k="v", percent-encoded.
	// Built strictly from the oauth_* fields plus oauth_signature — the
	// extra query parameters never appear here, only in the URI (step 6).
	authPairs := make([]string, 0, len(oauthParams))
	for k, v := range oauthParams {
		authPairs = append(authPairs, fmt.Sprintf(`%s="%s"`, percentEncode(k), percentEncode(v)))
	}
	sort.Strings(authPairs)
	authHeader := "OAuth " + strings.Join(authPairs, ", ")

	// Step 6: final URI carries only the extra query parameters,
	// preserving insertion order.
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errs.New(errs.KindCannotBuildRequest, "parse url", err)
	}
	if len(extra) > 0 {
		var q strings.Builder
		for i, p := range extra {
			if i > 0 {
				q.WriteByte('&')
			}
			q.WriteString(percentEncode(p.Key))
			q.WriteByte('=')
			q.WriteString(percentEncode(p.Value))
		}
		u.RawQuery = q.String()
	}

	req, err := http.NewRequest(method, u.String(), nil)
	if err != nil {
		return nil, errs.New(errs.KindCannotBuildRequest, "build request", err)
	}
	req.Header.Set("Connection", "close")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", authHeader)
	return req, nil
}
