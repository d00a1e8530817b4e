package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/go-playground/assert/v2"

	"github.com/bringyour/checklist/checklist"
)

func TestLoadConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(configPath, []byte(`
api_url: http://list.example.com
ws_url: ws://list.example.com/ws
commit_delay: 500ms
`), 0o600)
	assert.Equal(t, err, nil)

	config, err := loadConfig(docopt.Opts{
		"--config":       configPath,
		"--ws_url":       "ws://override.example.com/ws",
		"--api_url":      nil,
		"--db_path":      nil,
		"--commit_delay": nil,
	})
	assert.Equal(t, err, nil)
	assert.Equal(t, config.ApiUrl, "http://list.example.com")
	assert.Equal(t, config.WsUrl, "ws://override.example.com/ws")
	assert.Equal(t, config.CommitDelay, 500*time.Millisecond)
	assert.Equal(t, config.DbPath, "~/.checklist/state.db")
}

func TestLoadConfigMissingFile(t *testing.T) {
	config, err := loadConfig(docopt.Opts{
		"--config":       filepath.Join(t.TempDir(), "missing.yaml"),
		"--commit_delay": "2s",
	})
	assert.Equal(t, err, nil)
	assert.Equal(t, config.ApiUrl, checklist.DefaultApiUrl)
	assert.Equal(t, config.CommitDelay, 2*time.Second)
}

func TestRenderView(t *testing.T) {
	items := []checklist.Item{
		{Uid: "1", Name: "milk", Category: "food"},
		{Uid: "2", Name: "eggs", Category: "food", IsChecked: true},
		{Uid: "3", Name: "soap", Category: "home", IsChecked: true, IsPrechecked: true},
	}
	preferences := checklist.DefaultViewPreferences()
	view := checklist.BuildView(items, preferences)

	out := renderView(checklist.DefaultNamespaceKey, view, preferences)
	assert.Equal(t, strings.Contains(out, "g/default (2/3)"), true)
	assert.Equal(t, strings.Count(out, "food"), 1)
	assert.Equal(t, strings.Contains(out, "home"), true)
	assert.Equal(t, strings.Contains(out, "[x] eggs"), true)
	assert.Equal(t, strings.Contains(out, "[~] soap"), true)

	preferences.SetSearchText("bread")
	view = checklist.BuildView(items, preferences)
	out = renderView(checklist.DefaultNamespaceKey, view, preferences)
	assert.Equal(t, strings.Contains(out, "no items match"), true)
}
