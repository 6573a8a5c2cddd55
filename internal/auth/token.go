// Package auth derives the short-lived gateway credentials.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// BucketWidth is the lifetime of a token.
const BucketWidth = 60 * time.Second

// tokenLen is the number of hex characters kept from the digest.
const tokenLen = 10

// Token returns the gateway token for appID/secret in the minute bucket
// containing now: the first 10 hex characters of
// sha256(appID + secret + floor(unix/60)).
func Token(appID, secret string, now time.Time) string {
	bucket := now.Unix() / int64(BucketWidth/time.Second)
	sum := sha256.Sum256([]byte(appID + secret + strconv.FormatInt(bucket, 10)))
	return hex.EncodeToString(sum[:])[:tokenLen]
}

// Credentials identifies this client to the gateway.
type Credentials struct {
	AppID     string
	AppSecret string
}

// Token returns the token valid for the bucket containing now.
func (c Credentials) Token(now time.Time) string {
	return Token(c.AppID, c.AppSecret, now)
}
