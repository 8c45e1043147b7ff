package session_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primecut/liveboard/session"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestParseRole(t *testing.T) {
	role, err := session.ParseRole("Manager")
	require.NoError(t, err)
	assert.Equal(t, session.RoleManager, role)

	_, err = session.ParseRole("admin")
	assert.Error(t, err)
}

func TestResolver_StandaloneTokenWinsOverSessionObject(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "access_token"), "standalone-token\n")
	writeFile(t, filepath.Join(dir, "manager_session.json"),
		`{"access_token":"embedded-token","role":"manager"}`)

	resolver := session.DefaultResolver(dir)

	token, err := resolver.Resolve(session.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, "standalone-token", token)
}

func TestResolver_FallsBackToSessionObject(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "store_session.json"),
		`{"access_token":"embedded-token","role":"store"}`)

	resolver := session.DefaultResolver(dir)

	token, err := resolver.Resolve(session.RoleStore)
	require.NoError(t, err)
	assert.Equal(t, "embedded-token", token)
}

func TestResolver_SessionObjectIsRoleScoped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "manager_session.json"),
		`{"access_token":"manager-token"}`)

	resolver := session.DefaultResolver(dir)

	_, err := resolver.Resolve(session.RoleStore)
	assert.ErrorIs(t, err, session.ErrNoCredential)
}

func TestResolver_AbsentEverywhere(t *testing.T) {
	resolver := session.DefaultResolver(t.TempDir())

	_, err := resolver.Resolve(session.RoleManager)
	assert.ErrorIs(t, err, session.ErrNoCredential)
}

func TestResolver_EmptyTokenFileIsAbsent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "access_token"), "  \n")

	resolver := session.DefaultResolver(dir)

	_, err := resolver.Resolve(session.RoleManager)
	assert.ErrorIs(t, err, session.ErrNoCredential)
}

func TestResolver_MalformedSessionObjectIsAnError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "manager_session.json"), "{not json")

	resolver := session.DefaultResolver(dir)

	_, err := resolver.Resolve(session.RoleManager)
	require.Error(t, err)
	assert.NotErrorIs(t, err, session.ErrNoCredential)
}

func TestEnvSource(t *testing.T) {
	t.Setenv("LIVEBOARD_STORE_TOKEN", "env-token")

	src := &session.EnvSource{Prefix: "LIVEBOARD_"}
	token, err := src.Token(session.RoleStore)
	require.NoError(t, err)
	assert.Equal(t, "env-token", token)

	_, err = src.Token(session.RoleManager)
	assert.ErrorIs(t, err, session.ErrNoCredential)
}

func TestWatcher_SignalsWhenCredentialCleared(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "access_token")
	writeFile(t, tokenPath, "token")

	resolver := session.DefaultResolver(dir)
	watcher, err := session.NewWatcher(dir, session.RoleManager, resolver, nil)
	require.NoError(t, err)
	defer watcher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	// Logout clears the token location.
	require.NoError(t, os.Remove(tokenPath))

	select {
	case <-watcher.CredentialLost():
	case <-time.After(3 * time.Second):
		t.Fatal("expected credential-lost signal after token removal")
	}
}

func TestWatcher_NoSignalWhileCredentialPresent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "access_token"), "token")

	resolver := session.DefaultResolver(dir)
	watcher, err := session.NewWatcher(dir, session.RoleManager, resolver, nil)
	require.NoError(t, err)
	defer watcher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	// Rewriting the token is not a logout.
	writeFile(t, filepath.Join(dir, "access_token"), "rotated-token")

	select {
	case <-watcher.CredentialLost():
		t.Fatal("unexpected credential-lost signal")
	case <-time.After(500 * time.Millisecond):
	}
}
