// Package session resolves the bearer credential a screen uses for every
// backend call. Tokens can live in several storage locations; the resolver
// tries an ordered list of sources and the first present value wins.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Role identifies which console surface a screen renders.
type Role string

const (
	// RoleManager is the manager console.
	RoleManager Role = "manager"

	// RoleStore is the store/kitchen display.
	RoleStore Role = "store"
)

// ParseRole converts a string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(s)) {
	case RoleManager:
		return RoleManager, nil
	case RoleStore:
		return RoleStore, nil
	}
	return "", fmt.Errorf("unknown role %q (want %q or %q)", s, RoleManager, RoleStore)
}

// ErrNoCredential is returned when no source holds a token for the role.
// Every authenticated component treats this as a hard precondition failure:
// the screen goes unauthenticated and nothing is fetched or subscribed.
var ErrNoCredential = errors.New("session: no credential present")

// Source is a single token lookup strategy.
type Source interface {
	// Token returns the bearer token for the role, or ErrNoCredential if
	// this location does not hold one.
	Token(role Role) (string, error)

	// Name identifies the source in logs.
	Name() string
}

// Resolver tries sources in order and returns the first token found.
// Precedence is fixed at construction; callers inject it explicitly rather
// than reading ambient global state.
type Resolver struct {
	sources []Source
}

// NewResolver creates a resolver over the given sources, tried in order.
func NewResolver(sources ...Source) *Resolver {
	return &Resolver{sources: sources}
}

// Resolve returns the bearer token for the role. It returns ErrNoCredential
// when every source comes up empty; any other error means a source was
// present but unreadable.
func (r *Resolver) Resolve(role Role) (string, error) {
	for _, src := range r.sources {
		token, err := src.Token(role)
		if err == nil && token != "" {
			return token, nil
		}
		if err != nil && !errors.Is(err, ErrNoCredential) {
			return "", fmt.Errorf("source %s: %w", src.Name(), err)
		}
	}
	return "", ErrNoCredential
}

// DefaultResolver builds the standard precedence chain over a session
// directory: (1) the standalone access-token file, (2) the token embedded in
// the role-specific session object.
func DefaultResolver(dir string) *Resolver {
	return NewResolver(
		&TokenFileSource{Path: filepath.Join(dir, "access_token")},
		&SessionFileSource{Dir: dir},
	)
}

// TokenFileSource reads a standalone access token from a file. The file
// holds the raw token, optionally with trailing whitespace.
type TokenFileSource struct {
	Path string
}

// Name identifies the source in logs.
func (s *TokenFileSource) Name() string { return "token-file" }

// Token reads the standalone token. A missing or empty file is
// ErrNoCredential, not an error.
func (s *TokenFileSource) Token(_ Role) (string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoCredential
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

// sessionObject is the stored login session for one role.
type sessionObject struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role,omitempty"`
	User        string `json:"user,omitempty"`
}

// SessionFileSource reads the access token embedded in the role-specific
// session object (<dir>/<role>_session.json), the location the login flow
// writes on success.
type SessionFileSource struct {
	Dir string
}

// Name identifies the source in logs.
func (s *SessionFileSource) Name() string { return "session-file" }

// Token extracts the embedded access token for the role.
func (s *SessionFileSource) Token(role Role) (string, error) {
	path := filepath.Join(s.Dir, string(role)+"_session.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoCredential
		}
		return "", fmt.Errorf("read session file: %w", err)
	}

	var obj sessionObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", fmt.Errorf("parse session file %s: %w", path, err)
	}
	if obj.AccessToken == "" {
		return "", ErrNoCredential
	}
	return obj.AccessToken, nil
}

// EnvSource reads the token from an environment variable, the conventional
// location for containerized screens. The variable name is per-role when
// Prefix is set (e.g. LIVEBOARD_MANAGER_TOKEN).
type EnvSource struct {
	// Prefix is the variable name prefix; the role is appended uppercased.
	Prefix string
}

// Name identifies the source in logs.
func (s *EnvSource) Name() string { return "env" }

// Token reads the per-role environment variable.
func (s *EnvSource) Token(role Role) (string, error) {
	key := s.Prefix + strings.ToUpper(string(role)) + "_TOKEN"
	token := strings.TrimSpace(os.Getenv(key))
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}
