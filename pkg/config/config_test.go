package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[crypto]
key = "AB61498184100BBE904FC1B81C8CFD2A08B5F5226042AC117E9C84E6F86BF830"

[server]
host = "127.0.0.1"
port = 9500
maxPendingConnections = 16

[db]
driver = "sqlite3"
url = "/tmp/chat.db"

[client]
reconnectAttempts = 5
historyPath = "history.db"

[api]
enabled = true
`

func noEnv(string) (string, bool) { return "", false }

func TestLoadFlattensSections(t *testing.T) {
	src, err := Load([]byte(sampleConfig))
	require.NoError(t, err)
	src.SetLookup(noEnv)

	assert.Equal(t, "127.0.0.1", src.String(KeyServerHost, DefaultServerHost))
	assert.Equal(t, 9500, src.Int(KeyServerPort, DefaultPort))
	assert.Equal(t, 16, src.Int(KeyMaxPendingConnections, DefaultMaxPendingConnections))
	assert.Equal(t, "/tmp/chat.db", src.String(KeyDBURL, DefaultDBURL))
	assert.Equal(t, 5, src.Int(KeyReconnectAttempts, 0))
	assert.True(t, src.Bool("api.enabled", false))

	assert.Contains(t, src.Keys(), KeyCryptoKey)
	assert.Contains(t, src.Keys(), KeyHistoryPath)
}

func TestDefaults(t *testing.T) {
	src := New(nil)
	src.SetLookup(noEnv)

	assert.Equal(t, DefaultServerHost, src.String(KeyServerHost, DefaultServerHost))
	assert.Equal(t, DefaultPort, src.Int(KeyServerPort, DefaultPort))
	assert.Equal(t, DefaultPepper, src.String(KeyPasswordPepper, DefaultPepper))
	assert.False(t, src.Bool("api.enabled", false))
}

func TestInvalidValueFallsBack(t *testing.T) {
	src := New(map[string]string{
		KeyServerPort: "not-a-port",
		"api.enabled": "maybe",
	})
	src.SetLookup(noEnv)

	assert.Equal(t, DefaultPort, src.Int(KeyServerPort, DefaultPort))
	assert.True(t, src.Bool("api.enabled", true))
}

func TestEnvironmentOverride(t *testing.T) {
	src := New(map[string]string{KeyServerPort: "9500"})
	src.SetLookup(func(name string) (string, bool) {
		if name == "ZENTALK_SERVER_PORT" {
			return "7000", true
		}
		return "", false
	})

	assert.Equal(t, 7000, src.Int(KeyServerPort, DefaultPort))
}

func TestEnvName(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{KeyServerPort, "ZENTALK_SERVER_PORT"},
		{KeyMaxPendingConnections, "ZENTALK_SERVER_MAXPENDINGCONNECTIONS"},
		{KeyCryptoKey, "ZENTALK_CRYPTO_KEY"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EnvName(tt.key))
	}
}

func TestSetOverridesFile(t *testing.T) {
	src, err := Load([]byte(sampleConfig))
	require.NoError(t, err)
	src.SetLookup(noEnv)

	src.Set(KeyServerPort, "9600")
	assert.Equal(t, 9600, src.Int(KeyServerPort, DefaultPort))
}

func TestRequire(t *testing.T) {
	src := New(map[string]string{KeyCryptoKey: "abcd"})
	src.SetLookup(noEnv)

	v, err := src.Require(KeyCryptoKey)
	require.NoError(t, err)
	assert.Equal(t, "abcd", v)

	_, err = src.Require(KeyDBUser)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0600))

	src, err := LoadFile(path)
	require.NoError(t, err)
	src.SetLookup(noEnv)
	assert.Equal(t, "sqlite3", src.String(KeyDBDriver, ""))

	empty, err := LoadFile("")
	require.NoError(t, err)
	assert.Empty(t, empty.Keys())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadInvalidTOML(t *testing.T) {
	_, err := Load([]byte("[server\nport = "))
	assert.Error(t, err)
}
