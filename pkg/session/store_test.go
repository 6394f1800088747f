package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediacrawl/pkg/config"
	"mediacrawl/pkg/logger"
)

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, logger.GetLogger())

	sess := NewSession("xhs", config.LoginMethodCookie)
	sess.setCookies(map[string]string{"session_token": "abc"})
	sess.setState(StateLoggedIn)

	require.NoError(t, store.Save(sess))

	loaded, err := store.Load("xhs")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, "xhs", loaded.Platform)
	assert.Equal(t, config.LoginMethodCookie, loaded.Method)
	assert.Equal(t, StateLoggedIn, loaded.State())
	tok, ok := loaded.Cookie("session_token")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)
}

func TestStoreLoadMissing(t *testing.T) {
	store := NewStore(t.TempDir(), logger.GetLogger())

	loaded, err := store.Load("nope")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStoreLoadCorrupted(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, logger.GetLogger())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "xhs_session.json"), []byte("{not json"), 0600))

	loaded, err := store.Load("xhs")
	require.NoError(t, err)
	assert.Nil(t, loaded, "corrupted state falls back to a fresh login")
}

func TestStoreSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, logger.GetLogger())

	sess := NewSession("dy", config.LoginMethodQRCode)
	require.NoError(t, store.Save(sess))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dy_session.json", entries[0].Name())
}

func TestStoreDelete(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, logger.GetLogger())

	sess := NewSession("xhs", config.LoginMethodCookie)
	require.NoError(t, store.Save(sess))
	require.NoError(t, store.Delete("xhs"))

	loaded, err := store.Load("xhs")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Deleting again is not an error.
	assert.NoError(t, store.Delete("xhs"))
}
