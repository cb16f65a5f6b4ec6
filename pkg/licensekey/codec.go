// Package licensekey builds and checks license key strings.
//
// A key looks like PREFIX-HHHH-HHHH-HHHH with an optional trailing 16
// character tag. The tag is the truncated HMAC-SHA256 of the three body
// blocks, so a signed key can be verified without touching storage.
package licensekey

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	DefaultPrefix = "LIC"

	blockCount = 3
	blockBytes = 2
	blockLen   = blockBytes * 2
	tagLen     = 16
	keyLen     = 32

	hkdfInfo = "licensegate key signing v1"
)

var (
	// ErrMalformed is returned by Parse when the key does not have the expected shape.
	ErrMalformed = errors.New("malformed license key")
	// ErrSecretRequired is returned by NewCodec in signed mode without a secret.
	ErrSecretRequired = errors.New("signing secret required for signed keys")
)

// Parts is the structural breakdown of a key.
type Parts struct {
	Prefix string
	Blocks [blockCount]string
	Tag    string
}

// Body returns the signed portion of the key, the three blocks joined by "-".
func (p Parts) Body() string {
	return strings.Join(p.Blocks[:], "-")
}

// Codec generates and verifies keys for one deployment.
type Codec struct {
	prefix string
	signed bool
	macKey []byte
	rand   io.Reader
}

// NewCodec derives the MAC key from secret. The raw secret is not retained.
func NewCodec(prefix, secret string, signed bool) (*Codec, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if strings.Contains(prefix, "-") {
		return nil, fmt.Errorf("prefix %q must not contain '-'", prefix)
	}

	c := &Codec{prefix: prefix, signed: signed, rand: rand.Reader}
	if !signed {
		return c, nil
	}
	if secret == "" {
		return nil, ErrSecretRequired
	}

	c.macKey = make([]byte, keyLen)
	kdf := hkdf.New(sha256.New, []byte(secret), []byte(prefix), []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, c.macKey); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return c, nil
}

// Signed reports whether generated keys carry a tag.
func (c *Codec) Signed() bool { return c.signed }

func (c *Codec) Prefix() string { return c.prefix }

// Generate returns a fresh key. Collisions are possible and are resolved by the
// store's primary key, not here.
func (c *Codec) Generate() (string, error) {
	var parts Parts
	parts.Prefix = c.prefix

	buf := make([]byte, blockBytes)
	for i := range parts.Blocks {
		if _, err := io.ReadFull(c.rand, buf); err != nil {
			return "", fmt.Errorf("read random block: %w", err)
		}
		parts.Blocks[i] = strings.ToUpper(hex.EncodeToString(buf))
	}

	if c.signed {
		parts.Tag = c.tag(parts.Body())
	}
	return parts.String(), nil
}

// Verify reports whether key is well formed for this codec and, in signed
// mode, carries a correct tag. It never consults storage.
func (c *Codec) Verify(key string) bool {
	parts, err := c.Parse(key)
	if err != nil {
		return false
	}
	if !c.signed {
		return true
	}
	return hmac.Equal([]byte(parts.Tag), []byte(c.tag(parts.Body())))
}

// Parse splits key into its parts, checking the prefix, block count, block
// length, hex charset and tag length expected by this codec.
func (c *Codec) Parse(key string) (Parts, error) {
	var parts Parts

	segments := strings.Split(strings.TrimSpace(key), "-")
	want := 1 + blockCount
	if c.signed {
		want++
	}
	if len(segments) != want {
		return parts, fmt.Errorf("%w: expected %d segments, got %d", ErrMalformed, want, len(segments))
	}
	if segments[0] != c.prefix {
		return parts, fmt.Errorf("%w: unexpected prefix", ErrMalformed)
	}
	parts.Prefix = segments[0]

	for i := 0; i < blockCount; i++ {
		block := segments[1+i]
		if len(block) != blockLen || !isUpperHex(block) {
			return parts, fmt.Errorf("%w: block %d", ErrMalformed, i+1)
		}
		parts.Blocks[i] = block
	}

	if c.signed {
		tag := segments[len(segments)-1]
		if len(tag) != tagLen || !isUpperHex(tag) {
			return parts, fmt.Errorf("%w: tag", ErrMalformed)
		}
		parts.Tag = tag
	}
	return parts, nil
}

func (p Parts) String() string {
	if p.Tag == "" {
		return p.Prefix + "-" + p.Body()
	}
	return p.Prefix + "-" + p.Body() + "-" + p.Tag
}

func (c *Codec) tag(body string) string {
	mac := hmac.New(sha256.New, c.macKey)
	mac.Write([]byte(body))
	sum := mac.Sum(nil)
	return strings.ToUpper(hex.EncodeToString(sum))[:tagLen]
}

func isUpperHex(s string) bool {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if (ch < '0' || ch > '9') && (ch < 'A' || ch > 'F') {
			return false
		}
	}
	return true
}
