package config

import (
	"path/filepath"

	"github.com/abdul-hamid-achik/httpbridge/packages/clientpool"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:             int(clientpool.DefaultTimeout.Milliseconds()),
		MaxIdleConnsPerHost: clientpool.DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     int(clientpool.DefaultIdleConnTimeout.Milliseconds()),
		Retries:             clientpool.DefaultMaxRetries,
		FollowRedirects:     BoolPtr(true),
		MaxRedirects:        clientpool.DefaultMaxRedirects,
		ValidateSSL:         BoolPtr(true),
		PreferHTTP2:         BoolPtr(true),
		HistoryDB:           DefaultHistoryDB(),
		LogLevel:            "info",
	}
}

// DefaultHistoryDB returns the default location of the benchmark history
// database
func DefaultHistoryDB() string {
	return filepath.Join(".httpbridge", "history.db")
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	d := DefaultConfig()
	return c.Timeout == d.Timeout &&
		c.ConnectTimeout == d.ConnectTimeout &&
		c.MaxIdleConnsPerHost == d.MaxIdleConnsPerHost &&
		c.IdleConnTimeout == d.IdleConnTimeout &&
		c.Retries == d.Retries &&
		c.GetFollowRedirects() == d.GetFollowRedirects() &&
		c.MaxRedirects == d.MaxRedirects &&
		c.GetValidateSSL() == d.GetValidateSSL() &&
		c.GetPreferHTTP2() == d.GetPreferHTTP2() &&
		c.Proxy == d.Proxy &&
		c.UserAgent == d.UserAgent &&
		len(c.Headers) == 0 &&
		c.GetStream() == d.GetStream() &&
		c.GetAsync() == d.GetAsync() &&
		c.MetricsAddr == d.MetricsAddr &&
		c.HistoryDB == d.HistoryDB &&
		c.LogLevel == d.LogLevel &&
		c.GetVerbose() == d.GetVerbose() &&
		c.GetNoColor() == d.GetNoColor()
}
