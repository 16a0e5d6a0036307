package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignedURLSigner creates and validates signed download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// SignedFile is the content of a validated token.
type SignedFile struct {
	Name      string
	Path      string
	ExpiresAt time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a token naming the download file and its stored path.
func (s *SignedURLSigner) Generate(name, relPath string) (string, time.Time, error) {
	if name == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("name and relPath required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl)
	encodedName := base64.RawURLEncoding.EncodeToString([]byte(name))
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	signature := s.sign(encodedName, ts, encodedPath)
	token := strings.Join([]string{encodedName, ts, encodedPath, signature}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the embedded metadata.
// When allowExpired is true, the timestamp check is skipped.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (*SignedFile, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid token format")
	}
	encodedName, ts, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	expected := s.sign(encodedName, ts, encodedPath)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, fmt.Errorf("invalid token signature")
	}

	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp")
	}
	expiresAt := time.Unix(expUnix, 0)
	if !allowExpired && s.now().After(expiresAt) {
		return nil, fmt.Errorf("token expired")
	}

	rawName, err := base64.RawURLEncoding.DecodeString(encodedName)
	if err != nil {
		return nil, fmt.Errorf("decode name: %w", err)
	}
	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return nil, fmt.Errorf("decode path: %w", err)
	}
	return &SignedFile{Name: string(rawName), Path: string(rawPath), ExpiresAt: expiresAt}, nil
}

func (s *SignedURLSigner) sign(name, ts, path string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(name + "|" + ts + "|" + path))
	return hex.EncodeToString(mac.Sum(nil))
}
