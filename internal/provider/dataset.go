package provider

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Load reads a JSON array of providers from path.
func Load(path string) ([]Provider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "provider: read %s", path)
	}

	var providers []Provider
	if err := json.Unmarshal(raw, &providers); err != nil {
		return nil, eris.Wrapf(err, "provider: parse %s", path)
	}

	return providers, nil
}

// Write persists providers to path as a pretty-printed JSON array, creating
// parent directories as needed. The file is written whole; the pipeline never
// streams or appends.
func Write(path string, providers []Provider) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "provider: mkdir %s", dir)
		}
	}

	raw, err := json.MarshalIndent(providers, "", "  ")
	if err != nil {
		return eris.Wrap(err, "provider: marshal")
	}
	raw = append(raw, '\n')

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return eris.Wrapf(err, "provider: write %s", path)
	}

	return nil
}

// Print writes providers to w in the same pretty-printed form Write persists,
// for dry runs.
func Print(w io.Writer, providers []Provider) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(providers); err != nil {
		return eris.Wrap(err, "provider: encode")
	}
	return nil
}
