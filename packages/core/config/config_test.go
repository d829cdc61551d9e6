package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/httpbridge/packages/clientpool"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()

	assert.Equal(t, 30000, c.Timeout)
	assert.Equal(t, 64, c.MaxIdleConnsPerHost)
	assert.Equal(t, 90000, c.IdleConnTimeout)
	assert.True(t, c.GetFollowRedirects())
	assert.True(t, c.GetValidateSSL())
	assert.True(t, c.GetPreferHTTP2())
	assert.False(t, c.GetStream())
	assert.False(t, c.GetAsync())
	assert.True(t, c.IsDefault())
}

func TestGetters_ZeroValue(t *testing.T) {
	var c Config
	assert.True(t, c.GetFollowRedirects())
	assert.True(t, c.GetValidateSSL())
	assert.False(t, c.GetVerbose())
	assert.False(t, c.GetNoColor())
}

func TestLoadConfig_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"timeout": 5000, "stream": true, "headers": {"X-Team": "core"}}`), 0644))

	c, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5000, c.Timeout)
	assert.True(t, c.GetStream())
	assert.Equal(t, "core", c.Headers["X-Team"])
	assert.Equal(t, 64, c.MaxIdleConnsPerHost, "unset fields keep defaults")
}

func TestLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	content := `timeout: 1500
followRedirects: false
proxy: http://proxy.local:3128
headers:
  Accept: application/json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	c, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 1500, c.Timeout)
	assert.False(t, c.GetFollowRedirects())
	assert.Equal(t, "http://proxy.local:3128", c.Proxy)
	assert.Equal(t, "application/json", c.Headers["Accept"])
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"timeout": `), 0644))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "broken.json")

	_, err = LoadConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestFindAndLoadConfig(t *testing.T) {
	dir := t.TempDir()

	c, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.True(t, c.IsDefault(), "no file yields defaults")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".httpbridge.yml"), []byte("async: true\n"), 0644))
	c, err = FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.True(t, c.GetAsync())
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"A": "1", "B": "2"}

	merged := base.Merge(&Config{
		Timeout:         100,
		FollowRedirects: BoolPtr(false),
		Headers:         map[string]string{"B": "override"},
	})

	assert.Equal(t, 100, merged.Timeout)
	assert.False(t, merged.GetFollowRedirects())
	assert.Equal(t, map[string]string{"A": "1", "B": "override"}, merged.Headers)
	assert.Equal(t, "2", base.Headers["B"], "base is not mutated")
	assert.True(t, base.GetFollowRedirects())

	assert.Same(t, base, base.Merge(nil))
}

func TestClientConfig(t *testing.T) {
	c := DefaultConfig().Merge(&Config{
		Timeout:        2000,
		ConnectTimeout: 500,
		ValidateSSL:    BoolPtr(false),
		PreferHTTP2:    BoolPtr(false),
		UserAgent:      "bench/1",
	})

	cfg := c.ClientConfig()
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.ConnectTimeout)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.False(t, cfg.PreferHTTP2)
	assert.Equal(t, "bench/1", cfg.UserAgent)
	assert.Equal(t, clientpool.DefaultMaxRedirects, cfg.MaxRedirects)

	noRedirects := DefaultConfig().Merge(&Config{FollowRedirects: BoolPtr(false)}).ClientConfig()
	assert.Equal(t, -1, noRedirects.MaxRedirects)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := DefaultConfig().Merge(&Config{Proxy: "http://p", Stream: BoolPtr(true)})

	for _, name := range []string{"out.json", "out.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, c.SaveConfig(path))

			loaded, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, c, loaded)
		})
	}
}
