// Package appconfig loads the optional TOML configuration file. Config
// loading is an external collaborator, not a core kernel component, so
// the decoder here is deliberately minimal: top-level scalars plus
// [[plugins]] array-of-tables, not a general TOML implementation.
package appconfig

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/mrorigo/tuiql/internal/kernelerr"
	"github.com/mrorigo/tuiql/internal/tqlplugin"
)

// Config is the decoded shape of config.toml.
type Config struct {
	DefaultDBPath string
	SafeOff       bool
	Plugins       []tqlplugin.Descriptor
}

// Load reads and decodes path. A missing file is not an error; Load
// returns a zero Config so the caller falls back to defaults.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, kernelerr.Wrap(kernelerr.Config, "open "+path, err)
	}
	defer f.Close()

	cfg := Config{}
	var current *tqlplugin.Descriptor

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if line == "[[plugins]]" {
			if current != nil {
				cfg.Plugins = append(cfg.Plugins, *current)
			}
			current = &tqlplugin.Descriptor{}
			continue
		}

		key, value, ok := splitAssignment(line)
		if !ok {
			continue
		}

		if current != nil {
			switch key {
			case "name":
				current.Name = value
			case "path":
				current.Path = value
			case "description":
				current.Description = value
			case "capabilities":
				current.Capabilities = splitList(value)
			}
			continue
		}

		switch key {
		case "default_db_path":
			cfg.DefaultDBPath = value
		case "safe_off":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return Config{}, kernelerr.Wrap(kernelerr.Config, "parse safe_off", err)
			}
			cfg.SafeOff = b
		}
	}
	if current != nil {
		cfg.Plugins = append(cfg.Plugins, *current)
	}

	if err := scanner.Err(); err != nil {
		return Config{}, kernelerr.Wrap(kernelerr.Config, "read "+path, err)
	}
	return cfg, nil
}

// splitAssignment parses a "key = value" line, stripping a quoted string
// value's surrounding quotes.
func splitAssignment(line string) (key, value string, ok bool) {
	idx := strings.IndexByte(line, '=')
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	value = strings.Trim(value, `"`)
	return key, value, true
}

// splitList parses a TOML-ish inline array of quoted strings, e.g.
// ["a", "b"].
func splitList(value string) []string {
	value = strings.TrimPrefix(value, "[")
	value = strings.TrimSuffix(value, "]")
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		part = strings.Trim(part, `"`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DefaultPath returns the conventional per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return dir + string(os.PathSeparator) + "tuiql" + string(os.PathSeparator) + "config.toml"
}
