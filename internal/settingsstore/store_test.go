package settingsstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ignite/adcontrol/internal/domain"
	"github.com/stretchr/testify/require"
)

func tempStorePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "settings.json")
}

func TestGetSetRoundtrip(t *testing.T) {
	store, err := New(tempStorePath(t))
	require.NoError(t, err)

	_, err = store.Get(domain.SettingUpstreamAPIToken)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(context.Background(), domain.SettingUpstreamAPIToken, "secret-token", "admin@example.com"))

	st, err := store.Get(domain.SettingUpstreamAPIToken)
	require.NoError(t, err)
	require.Equal(t, "secret-token", st.Value)
	require.WithinDuration(t, time.Now(), st.UpdatedAt, time.Minute)
}

func TestSetPersistsAcrossReload(t *testing.T) {
	path := tempStorePath(t)
	store, err := New(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), domain.SettingNotifyEmailFrom, "alerts@example.com", "admin@example.com"))

	reopened, err := New(path)
	require.NoError(t, err)
	require.Equal(t, "alerts@example.com", reopened.GetString(domain.SettingNotifyEmailFrom))
}

func TestGetFallsBackToEnvVar(t *testing.T) {
	store, err := New(tempStorePath(t))
	require.NoError(t, err)

	t.Setenv("UPSTREAM_API_TOKEN", "env-token")
	st, err := store.Get(domain.SettingUpstreamAPIToken)
	require.NoError(t, err)
	require.Equal(t, "env-token", st.Value)

	require.NoError(t, store.Set(context.Background(), domain.SettingUpstreamAPIToken, "file-token", "admin@example.com"))
	st, err = store.Get(domain.SettingUpstreamAPIToken)
	require.NoError(t, err)
	require.Equal(t, "file-token", st.Value, "a non-empty file value wins over the environment fallback")
}

func TestAllRedactsSecrets(t *testing.T) {
	store, err := New(tempStorePath(t))
	require.NoError(t, err)

	require.NoError(t, store.Set(context.Background(), domain.SettingUpstreamAPIToken, "sk_live_abcdef", "admin@example.com"))
	require.NoError(t, store.Set(context.Background(), domain.SettingNotifyEmailFrom, "alerts@example.com", "admin@example.com"))

	all := store.All()
	require.Len(t, all, 2)
	for _, st := range all {
		switch st.Key {
		case domain.SettingUpstreamAPIToken:
			require.Equal(t, "sk_l****cdef", st.Value)
		case domain.SettingNotifyEmailFrom:
			require.Equal(t, "alerts@example.com", st.Value)
		}
	}
}

func TestReloadPicksUpExternalEdit(t *testing.T) {
	path := tempStorePath(t)
	store, err := New(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), domain.SettingWebhookVerifyToken, "v1", "admin@example.com"))

	require.NoError(t, os.WriteFile(path, []byte(`[{"key":"webhook.verify_token","value":"v2","updated_by":"ops@example.com"}]`), 0o644))
	require.NoError(t, store.Reload(context.Background()))
	require.Equal(t, "v2", store.GetString(domain.SettingWebhookVerifyToken))
}
