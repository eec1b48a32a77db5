package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_GraphPathSources(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		args []string
		want string
	}{
		{name: "long flag", args: []string{"-graph", "g.ng.hcl"}, want: "g.ng.hcl"},
		{name: "shorthand flag", args: []string{"-g", "g.ng.hcl"}, want: "g.ng.hcl"},
		{name: "positional argument", args: []string{"graphs/"}, want: "graphs/"},
		{name: "long flag wins over positional", args: []string{"-graph", "a", "b"}, want: "a"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			cfg, exit, err := Parse(tc.args, &out)
			require.NoError(t, err)
			require.False(t, exit)
			assert.Equal(t, tc.want, cfg.GraphPath)
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"g.ng.hcl"}, &out)
	require.NoError(t, err)
	require.False(t, exit)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Output)
	assert.Zero(t, cfg.CacheEntries)
	assert.Zero(t, cfg.CacheBytes)
}

func TestParse_AllOptions(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cfg, exit, err := Parse([]string{
		"-graph", "g.ng.hcl",
		"-output", "final",
		"-log-format", "JSON",
		"-log-level", "DEBUG",
		"-cache-entries", "128",
		"-cache-bytes", "1048576",
	}, &out)
	require.NoError(t, err)
	require.False(t, exit)
	assert.Equal(t, "final", cfg.Output)
	assert.Equal(t, "json", cfg.LogFormat, "format is lowercased")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 128, cfg.CacheEntries)
	assert.Equal(t, 1048576, cfg.CacheBytes)
}

func TestParse_NoPathPrintsUsage(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cfg, exit, err := Parse(nil, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_Help(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"-h"}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
}

func TestParse_InvalidValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		args []string
	}{
		{name: "bad log format", args: []string{"-log-format", "xml", "g"}},
		{name: "bad log level", args: []string{"-log-level", "loud", "g"}},
		{name: "negative cache entries", args: []string{"-cache-entries", "-1", "g"}},
		{name: "negative cache bytes", args: []string{"-cache-bytes", "-1", "g"}},
		{name: "unknown flag", args: []string{"-frobnicate", "g"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			_, _, err := Parse(tc.args, &out)
			require.Error(t, err)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}
