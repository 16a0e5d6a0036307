// Package googleauth builds authenticated HTTP clients for Google APIs from
// service account credentials.
package googleauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/noah-isme/dept-portal-api/pkg/config"
)

// Scopes used by the record store and the document uploader.
const (
	ScopeSpreadsheets = "https://www.googleapis.com/auth/spreadsheets"
	ScopeDriveFile    = "https://www.googleapis.com/auth/drive.file"
)

// ErrNoCredentials is returned when neither a file nor inline JSON is set.
var ErrNoCredentials = errors.New("google credentials are not configured")

// Credentials resolves the raw credential JSON, preferring inline content.
func Credentials(cfg config.GoogleConfig) ([]byte, error) {
	if cfg.CredentialsJSON != "" {
		return []byte(cfg.CredentialsJSON), nil
	}
	if cfg.CredentialsFile == "" {
		return nil, ErrNoCredentials
	}
	raw, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read google credentials: %w", err)
	}
	return raw, nil
}

// NewClient returns an HTTP client whose token source is derived from the
// configured credentials and scopes.
func NewClient(ctx context.Context, cfg config.GoogleConfig, scopes ...string) (*http.Client, error) {
	raw, err := Credentials(cfg)
	if err != nil {
		return nil, err
	}
	creds, err := google.CredentialsFromJSON(ctx, raw, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse google credentials: %w", err)
	}
	return oauth2.NewClient(ctx, creds.TokenSource), nil
}
