package auth

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// bucketStart is the first second of minute bucket 28333333.
var bucketStart = time.Unix(1699999980, 0)

func TestToken_KnownValue(t *testing.T) {
	assert.Equal(t, "e27c4aa627", Token("app", "secret", bucketStart))
	assert.Equal(t, "d137fc8b0b", Token("app", "secret", bucketStart.Add(time.Minute)))
}

func TestToken_Format(t *testing.T) {
	tok := Token("b75fce6f", "dev-secret", time.Now())
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{10}$`), tok)
}

func TestToken_StableWithinBucket(t *testing.T) {
	first := Token("app", "secret", bucketStart)
	assert.Equal(t, first, Token("app", "secret", bucketStart.Add(59*time.Second)))
	assert.Equal(t, first, Token("app", "secret", bucketStart.Add(59*time.Second+999*time.Millisecond)))
}

func TestToken_ChangesAcrossBucket(t *testing.T) {
	assert.NotEqual(t,
		Token("app", "secret", bucketStart),
		Token("app", "secret", bucketStart.Add(61*time.Second)),
	)
}

func TestToken_DependsOnInputs(t *testing.T) {
	base := Token("app", "secret", bucketStart)
	assert.NotEqual(t, base, Token("app2", "secret", bucketStart))
	assert.NotEqual(t, base, Token("app", "secret2", bucketStart))
}

func TestCredentials_Token(t *testing.T) {
	c := Credentials{AppID: "app", AppSecret: "secret"}
	assert.Equal(t, Token("app", "secret", bucketStart), c.Token(bucketStart))
}
