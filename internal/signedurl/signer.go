// Package signedurl issues and verifies time-limited stream links. A link is
// authorized by an HMAC-SHA256 over its own path and expiry, so the stream
// endpoint never consults a session token.
package signedurl

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// ErrForbidden is returned for every rejected link. Expired, tampered and
// malformed links are indistinguishable to the caller.
var ErrForbidden = errors.New("invalid or expired stream link")

// SignedURL is an issued stream link.
type SignedURL struct {
	URL       string    `json:"stream_url"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int64     `json:"expires_in"`
}

// Signer signs and verifies stream links for media assets.
type Signer struct {
	secret  []byte
	ttl     time.Duration
	baseURL string
	now     func() time.Time
}

// NewSigner creates a Signer. baseURL is prefixed to issued links and must not end with a slash.
func NewSigner(secret string, ttl time.Duration, baseURL string) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl, baseURL: baseURL, now: time.Now}
}

// StreamPath returns the canonical stream path for a media id.
func StreamPath(mediaID int64) string {
	return "/media/stream/" + strconv.FormatInt(mediaID, 10)
}

// Sign issues a link for mediaID that expires after the signer's TTL.
func (s *Signer) Sign(mediaID int64) SignedURL {
	exp := s.now().Add(s.ttl).Unix()
	q := url.Values{}
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", s.signature(mediaID, exp))
	return SignedURL{
		URL:       s.baseURL + StreamPath(mediaID) + "?" + q.Encode(),
		ExpiresAt: time.Unix(exp, 0).UTC(),
		ExpiresIn: int64(s.ttl / time.Second),
	}
}

// Verify authorizes a request for mediaID carrying exp and sig. A link is
// valid up to and including its expiry second.
func (s *Signer) Verify(mediaID, exp int64, sig string) error {
	if s.now().Unix() > exp {
		return ErrForbidden
	}
	expected := s.signature(mediaID, exp)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrForbidden
	}
	return nil
}

// VerifyQuery parses the exp and sig query parameters and verifies them.
func (s *Signer) VerifyQuery(mediaID int64, rawExp, sig string) error {
	if rawExp == "" || sig == "" {
		return ErrForbidden
	}
	exp, err := strconv.ParseInt(rawExp, 10, 64)
	if err != nil {
		return ErrForbidden
	}
	return s.Verify(mediaID, exp, sig)
}

// signature is the lowercase hex HMAC over "/media/stream/{id}?exp={exp}".
func (s *Signer) signature(mediaID, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s?exp=%d", StreamPath(mediaID), exp)
	return hex.EncodeToString(mac.Sum(nil))
}
