package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	credFileName = "credentials.json"
	tokenEnv     = "NOTES_TOKEN"
)

type TokenInfo struct {
	Token     string     `json:"token"`
	Source    string     `json:"source"`     // "env" | "file"
	CreatedAt time.Time  `json:"created_at"` // when we saved to file
	ExpiresAt *time.Time `json:"expires_at"` // optional
}

// Claims is what whoami can tell about a JWT without verifying it.
type Claims struct {
	Subject   string
	Issuer    string
	ExpiresAt time.Time
	Email     string
}

// Expired reports whether the token carried an exp claim in the past.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Credentials reads and writes the token file under Dir.
type Credentials struct {
	Dir string
}

func New(dir string) *Credentials { return &Credentials{Dir: dir} }

func (c *Credentials) path() string { return filepath.Join(c.Dir, credFileName) }

// Token returns the active token, or nil when not logged in.
// NOTES_TOKEN wins over the file.
func (c *Credentials) Token() (*TokenInfo, error) {
	if env := strings.TrimSpace(os.Getenv(tokenEnv)); env != "" {
		return &TokenInfo{Token: stripBearer(env), Source: "env"}, nil
	}
	b, err := os.ReadFile(c.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var ti TokenInfo
	if err := json.Unmarshal(b, &ti); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	ti.Token = stripBearer(ti.Token)
	return &ti, nil
}

// Save writes the token owner-only. When the token is a JWT with an exp
// claim and expires is nil, the claim is recorded.
func (c *Credentials) Save(token string, expires *time.Time) error {
	token = stripBearer(strings.TrimSpace(token))
	if token == "" {
		return fmt.Errorf("empty token")
	}
	if expires == nil {
		if cl, err := Inspect(token); err == nil && !cl.ExpiresAt.IsZero() {
			exp := cl.ExpiresAt
			expires = &exp
		}
	}
	if err := os.MkdirAll(c.Dir, 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	ti := TokenInfo{
		Token:     token,
		Source:    "file",
		CreatedAt: time.Now(),
		ExpiresAt: expires,
	}
	b, err := json.MarshalIndent(ti, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.WriteFile(c.path(), b, 0o600); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Delete removes the token file. Not being logged in is not an error.
func (c *Credentials) Delete() error {
	if err := os.Remove(c.path()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// Inspect decodes a JWT's claims without checking its signature. The server
// does the verifying; this is only for display.
func Inspect(token string) (Claims, error) {
	tok, err := jwt.ParseString(stripBearer(token), jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return Claims{}, fmt.Errorf("not a jwt: %w", err)
	}
	cl := Claims{
		Subject:   tok.Subject(),
		Issuer:    tok.Issuer(),
		ExpiresAt: tok.Expiration(),
	}
	if email, ok := tok.Get("email"); ok {
		if s, ok := email.(string); ok {
			cl.Email = s
		}
	}
	return cl, nil
}

func stripBearer(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}
