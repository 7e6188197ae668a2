package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	// SlackMaxSkew is the replay window for Slack deliveries: requests whose
	// timestamp differs from the local clock by more than this are rejected
	// regardless of signature validity.
	SlackMaxSkew = 300 * time.Second

	// gitHubSignaturePrefix is the expected prefix of X-Hub-Signature-256.
	gitHubSignaturePrefix = "sha256="

	// slackSignaturePrefix is the expected prefix of x-slack-signature.
	slackSignaturePrefix = "v0="

	// slackSigningVersion is the version component of the Slack base string.
	slackSigningVersion = "v0"
)

var (
	// ErrMissingSignature is returned when the signature header is missing.
	ErrMissingSignature = errors.New("missing signature header")

	// ErrInvalidSignature is returned when the signature format is invalid.
	ErrInvalidSignature = errors.New("invalid signature format")

	// ErrSignatureMismatch is returned when the signature doesn't match.
	ErrSignatureMismatch = errors.New("signature mismatch")

	// ErrMissingTimestamp is returned when the timestamp header is missing.
	ErrMissingTimestamp = errors.New("missing timestamp header")

	// ErrInvalidTimestamp is returned when the timestamp format is invalid.
	ErrInvalidTimestamp = errors.New("invalid timestamp format")

	// ErrStaleTimestamp is returned when the request timestamp falls outside
	// the replay window.
	ErrStaleTimestamp = errors.New("request timestamp outside replay window")
)

// VerifyGitHubSignature checks the HMAC-SHA256 signature GitHub sends in
// X-Hub-Signature-256 against the raw request body. An empty secret accepts
// the delivery unconditionally: integrations without a configured webhook
// secret degrade to unauthenticated deliveries, which is a documented weaker
// posture rather than an error.
func VerifyGitHubSignature(secret string, body []byte, signature string) error {
	if secret == "" {
		return nil
	}

	if signature == "" {
		return ErrMissingSignature
	}

	if len(signature) <= len(gitHubSignaturePrefix) || signature[:len(gitHubSignaturePrefix)] != gitHubSignaturePrefix {
		return ErrInvalidSignature
	}

	provided, err := hex.DecodeString(signature[len(gitHubSignaturePrefix):])
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	// Use subtle.ConstantTimeCompare for timing-safe comparison
	if subtle.ConstantTimeCompare(provided, expected) != 1 {
		return ErrSignatureMismatch
	}

	return nil
}

// SignGitHub computes the X-Hub-Signature-256 header value for a payload.
// Used by tests and the local delivery replayer.
func SignGitHub(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return gitHubSignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// SlackVerifier verifies Slack request signatures computed over
// "v0:{timestamp}:{body}" and enforces the replay window.
type SlackVerifier struct {
	secret  string
	maxSkew time.Duration
	now     func() time.Time // for testing
}

// NewSlackVerifier creates a verifier for a Slack signing secret.
func NewSlackVerifier(secret string) *SlackVerifier {
	return &SlackVerifier{
		secret:  secret,
		maxSkew: SlackMaxSkew,
		now:     time.Now,
	}
}

// WithNow overrides the verifier clock.
func (v *SlackVerifier) WithNow(now func() time.Time) *SlackVerifier {
	v.now = now
	return v
}

// Verify checks both the timestamp freshness and the signature of a delivery.
// The timestamp is checked first so replayed requests are rejected even when
// they carry a correct signature.
func (v *SlackVerifier) Verify(body []byte, timestamp, signature string) error {
	if v.secret == "" {
		return ErrMissingSignature
	}

	if timestamp == "" {
		return ErrMissingTimestamp
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidTimestamp
	}

	age := v.now().UTC().Sub(time.Unix(ts, 0).UTC())
	if age > v.maxSkew || age < -v.maxSkew {
		return ErrStaleTimestamp
	}

	if signature == "" {
		return ErrMissingSignature
	}

	if len(signature) <= len(slackSignaturePrefix) || signature[:len(slackSignaturePrefix)] != slackSignaturePrefix {
		return ErrInvalidSignature
	}

	provided, err := hex.DecodeString(signature[len(slackSignaturePrefix):])
	if err != nil {
		return ErrInvalidSignature
	}

	expected := slackSignatureDigest(v.secret, timestamp, body)

	if subtle.ConstantTimeCompare(provided, expected) != 1 {
		return ErrSignatureMismatch
	}

	return nil
}

// SignSlack computes the x-slack-signature header value for a payload and
// timestamp. Used by tests.
func SignSlack(secret, timestamp string, body []byte) string {
	return slackSignaturePrefix + hex.EncodeToString(slackSignatureDigest(secret, timestamp, body))
}

func slackSignatureDigest(secret, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s:%s:", slackSigningVersion, timestamp)
	mac.Write(body)
	return mac.Sum(nil)
}
