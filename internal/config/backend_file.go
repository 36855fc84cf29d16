package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const appDir = "ivy"

func defaultDataDir() string {
	return xdgPath("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func configFilePath() string {
	return filepath.Join(xdgPath("XDG_CONFIG_HOME", ".config"), "config.json")
}

// xdgPath resolves ivy's directory under the XDG base directory named by env,
// or under homeRel in the home directory when env is unset.
func xdgPath(env, homeRel string) string {
	base := os.Getenv(env)
	if base == "" {
		base = "."
		if home, err := os.UserHomeDir(); err == nil {
			base = filepath.Join(home, homeRel)
		}
	}
	return filepath.Join(base, appDir)
}

// fileBackend keeps config as one flat JSON object keyed by dotted names.
// Scalars keep their JSON type on disk ("server.port": 4000).
type fileBackend struct {
	path string
	data map[string]json.RawMessage
}

func newPlatformBackend() ConfigBackend {
	return newFileBackend(configFilePath())
}

func newFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, data: make(map[string]json.RawMessage)}
	if err := b.load(); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] %v. Using default values.\n", err)
	}
	return b
}

func (b *fileBackend) load() error {
	raw, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not read config file %s: %w", b.path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("could not parse config file %s: %w", b.path, err)
	}
	if data != nil {
		b.data = data
	}
	return nil
}

func (b *fileBackend) Lookup(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	switch t := bytes.TrimSpace(v); {
	case len(t) == 0 || bytes.Equal(t, []byte("null")):
		return "", false, nil
	case t[0] == '"':
		var s string
		if err := json.Unmarshal(t, &s); err != nil {
			return "", true, fmt.Errorf("%s: %w", key, err)
		}
		return s, true, nil
	case t[0] == '{' || t[0] == '[':
		return "", true, fmt.Errorf("%s: expected a scalar, got %s", key, t)
	default:
		// Numbers and booleans are already in the text form parse expects.
		return string(t), true, nil
	}
}

func (b *fileBackend) Store(key string, v any) error {
	enc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	b.data[key] = enc
	return b.save()
}

func (b *fileBackend) Remove(key string) error {
	delete(b.data, key)
	return b.save()
}

// save writes through a temporary file so a crash never leaves a truncated
// config behind.
func (b *fileBackend) save() error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	out, err := json.MarshalIndent(b.data, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "config-*.json")
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(out, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return os.Rename(tmp.Name(), b.path)
}

// typedValue converts a validated setting to the JSON type stored on disk.
func typedValue(s keySpec, raw string) any {
	switch s.typ {
	case kInt:
		if i, err := strconv.Atoi(raw); err == nil {
			return i
		}
	case kBool:
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	}
	return raw
}
