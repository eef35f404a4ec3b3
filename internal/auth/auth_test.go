package auth

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/speedviz/speedviz/internal/config"
	"github.com/speedviz/speedviz/internal/output"
)

const origin = "https://api.speedviz.test"

func TestStoreFileBackend(t *testing.T) {
	dir := t.TempDir()
	store := &Store{fallbackDir: dir}
	assert.Equal(t, "file", store.Backend())

	_, err := store.Load(origin)
	assert.ErrorIs(t, err, ErrNoCredentials)

	require.NoError(t, store.Save(origin, &Credentials{Token: "tok-1", Label: "laptop"}))

	info, err := os.Stat(filepath.Join(dir, "credentials.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := store.Load(origin)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", loaded.Token)
	assert.Equal(t, "laptop", loaded.Label)

	require.NoError(t, store.Delete(origin))
	require.NoError(t, store.Delete(origin))
	_, err = store.Load(origin)
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestStoreFileBackendKeepsOtherOrigins(t *testing.T) {
	store := &Store{fallbackDir: t.TempDir()}
	require.NoError(t, store.Save(origin, &Credentials{Token: "a"}))
	require.NoError(t, store.Save("http://localhost:8080", &Credentials{Token: "b"}))
	require.NoError(t, store.Delete(origin))

	other, err := store.Load("http://localhost:8080")
	require.NoError(t, err)
	assert.Equal(t, "b", other.Token)
}

func TestStoreKeyringBackend(t *testing.T) {
	keyring.MockInit()

	store := NewStore(t.TempDir(), &bytes.Buffer{})
	require.True(t, store.UsingKeyring())

	require.NoError(t, store.Save(origin, &Credentials{Token: "kr"}))
	loaded, err := store.Load(origin)
	require.NoError(t, err)
	assert.Equal(t, "kr", loaded.Token)

	require.NoError(t, store.Delete(origin))
	require.NoError(t, store.Delete(origin))
	_, err = store.Load(origin)
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestNewStoreHonoursNoKeyring(t *testing.T) {
	t.Setenv("SPEEDVIZ_NO_KEYRING", "1")
	store := NewStore(t.TempDir(), nil)
	assert.False(t, store.UsingKeyring())
}

func newTestManager(t *testing.T, baseURL string) *Manager {
	t.Helper()
	t.Setenv(TokenEnv, "")
	cfg := config.Default()
	cfg.BaseURL = baseURL
	m := NewManagerWithStore(cfg, &Store{fallbackDir: t.TempDir()})
	m.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return m
}

func TestManagerAnonymousByDefault(t *testing.T) {
	m := newTestManager(t, origin)

	token, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)

	st, err := m.Status()
	require.NoError(t, err)
	assert.False(t, st.Authenticated)
	assert.Equal(t, "none", st.Source)
}

func TestManagerLoginLogout(t *testing.T) {
	m := newTestManager(t, origin+"/")

	require.NoError(t, m.Login("  secret  ", "ci"))
	token, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "secret", token)

	st, err := m.Status()
	require.NoError(t, err)
	assert.True(t, st.Authenticated)
	assert.Equal(t, "file", st.Source)
	assert.Equal(t, origin, st.Origin)
	assert.Equal(t, "ci", st.Label)
	assert.Equal(t, 2026, st.SavedAt.Year())

	require.NoError(t, m.Logout())
	token, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestManagerLoginRejectsEmptyToken(t *testing.T) {
	m := newTestManager(t, origin)
	err := m.Login("   ", "")
	require.Error(t, err)
	assert.Equal(t, output.CodeUsage, output.AsError(err).Code)
}

func TestManagerEnvTokenWins(t *testing.T) {
	m := newTestManager(t, origin)
	require.NoError(t, m.Login("stored", ""))
	t.Setenv(TokenEnv, "from-env")

	token, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-env", token)

	st, _ := m.Status()
	assert.Equal(t, "env", st.Source)
}

func TestManagerRefusesInsecureOrigin(t *testing.T) {
	m := newTestManager(t, "http://api.speedviz.test")
	require.NoError(t, m.Login("secret", ""))

	_, err := m.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plain http")

	local := newTestManager(t, "http://localhost:9999")
	require.NoError(t, local.Login("secret", ""))
	token, err := local.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "secret", token)
}
