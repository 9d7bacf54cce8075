package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zhaopengme/triagebot/pkg/config"
)

func TestTriageOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Triage.ExcludedSenders = []string{"dean"}

	opts := triageOptions(cfg)
	assert.Equal(t, 3*time.Second, opts.QuietWindow)
	assert.Equal(t, 5, opts.BatchSize)
	assert.Equal(t, time.Hour, opts.Cooldown)
	assert.Equal(t, []string{"dean"}, opts.ExcludedSenders)
	assert.Equal(t, "*/10 * * * *", opts.JanitorSchedule)
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("TRIAGEBOT_CONFIG", "/etc/triagebot.json5")
	cfgFile = ""
	assert.Equal(t, "/etc/triagebot.json5", resolveConfigPath())

	cfgFile = "local.yaml"
	defer func() { cfgFile = "" }()
	assert.Equal(t, "local.yaml", resolveConfigPath())
}

func TestRootCommandWiring(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "classify", "config", "version"} {
		assert.True(t, names[want], want)
	}
}
