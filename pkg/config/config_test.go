package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(overrides map[string]interface{}) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

func TestDefaultsUseMemoryStore(t *testing.T) {
	cfg, err := fromViper(newTestViper(nil))
	require.NoError(t, err)
	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, 15*time.Second, cfg.Store.Timeout)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, int64(25*1024*1024), cfg.Uploads.MaxFileSizeBytes)
	assert.Contains(t, cfg.Uploads.AllowedMIMEs, "application/pdf")
	assert.False(t, cfg.Google.HasCredentials())
}

func TestEndpointStoreRequiresURL(t *testing.T) {
	_, err := fromViper(newTestViper(map[string]interface{}{"STORE_DRIVER": "endpoint"}))
	require.Error(t, err)

	cfg, err := fromViper(newTestViper(map[string]interface{}{
		"STORE_DRIVER":       "Endpoint",
		"STORE_ENDPOINT_URL": "https://script.google.com/macros/s/abc/exec",
		"STORE_TIMEOUT":      "bogus",
	}))
	require.NoError(t, err)
	assert.Equal(t, StoreDriverEndpoint, cfg.Store.Driver)
	assert.Equal(t, 15*time.Second, cfg.Store.Timeout)
}

func TestBootstrapAdminIsMainAdmin(t *testing.T) {
	cfg, err := fromViper(newTestViper(map[string]interface{}{
		"ADMIN_USERNAMES":          "lan, ,minh",
		"ADMIN_BOOTSTRAP_USERNAME": "totruong",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"lan", "minh", "totruong"}, cfg.Admin.Usernames)
}

func TestProductionRejectsDevSecret(t *testing.T) {
	_, err := fromViper(newTestViper(map[string]interface{}{"ENV": EnvProduction}))
	require.Error(t, err)
}

func TestUnknownDriver(t *testing.T) {
	_, err := fromViper(newTestViper(map[string]interface{}{"STORE_DRIVER": "mongo"}))
	require.Error(t, err)
}
