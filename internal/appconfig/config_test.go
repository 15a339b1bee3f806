package appconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mrorigo/tuiql/internal/testutil"
)

func TestLoadMissingFileReturnsZeroValue(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, cfg.DefaultDBPath, "")
	testutil.AssertEqual(t, cfg.SafeOff, false)
}

func TestLoadScalarsAndPluginTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
default_db_path = "/tmp/app.db"
safe_off = true

[[plugins]]
name = "softdelete"
path = "/usr/local/bin/softdelete"
description = "marks rows deleted instead of removing them"
capabilities = ["transform"]

[[plugins]]
name = "audit"
path = "/usr/local/bin/audit"
`
	testutil.AssertNoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, cfg.DefaultDBPath, "/tmp/app.db")
	testutil.AssertEqual(t, cfg.SafeOff, true)
	testutil.AssertEqual(t, len(cfg.Plugins), 2)
	testutil.AssertEqual(t, cfg.Plugins[0].Name, "softdelete")
	testutil.AssertEqual(t, len(cfg.Plugins[0].Capabilities), 1)
	testutil.AssertEqual(t, cfg.Plugins[1].Name, "audit")
}
