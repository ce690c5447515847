// Package seed loads the initial collections, protected users and access
// rules. Defaults are embedded; each part can be replaced from disk.
package seed

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sipico/practice-server/internal/rules"
	"github.com/sipico/practice-server/internal/storage"
)

//go:embed data
var defaults embed.FS

// Locations of the embedded defaults.
const (
	CollectionsDir = "data/collections"
	ProtectedDir   = "data/protected"
	RulesFile      = "data/rules.yaml"
)

// ErrInvalidSeed is returned when a seed file is not a JSON object of records.
var ErrInvalidSeed = errors.New("invalid seed file")

// Defaults returns the embedded seed filesystem.
func Defaults() fs.FS {
	return defaults
}

// Sources names the on-disk overrides. Empty fields use the embedded defaults,
// except JSONStoreDir which has none.
type Sources struct {
	CollectionsDir string
	ProtectedDir   string
	RulesFile      string
	JSONStoreDir   string
}

// Data is everything the server is seeded with.
type Data struct {
	Collections []storage.Collection
	Protected   []storage.Collection
	Rules       rules.Config
	Documents   map[string]any
}

// Load reads every seed part from its source.
func Load(src Sources) (*Data, error) {
	var (
		d   Data
		err error
	)

	if d.Collections, err = LoadCollections(dirSource(src.CollectionsDir, CollectionsDir)); err != nil {
		return nil, err
	}
	if d.Protected, err = LoadCollections(dirSource(src.ProtectedDir, ProtectedDir)); err != nil {
		return nil, err
	}
	if d.Rules, err = LoadRules(fileSource(src.RulesFile, RulesFile)); err != nil {
		return nil, err
	}

	d.Documents = map[string]any{}
	if src.JSONStoreDir != "" {
		d.Documents, err = LoadDocuments(os.DirFS(src.JSONStoreDir), ".")
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if d.Documents == nil {
			d.Documents = map[string]any{}
		}
	}
	return &d, nil
}

func dirSource(override, embedded string) (fs.FS, string) {
	if override != "" {
		return os.DirFS(override), "."
	}
	return defaults, embedded
}

func fileSource(override, embedded string) (fs.FS, string) {
	if override != "" {
		return os.DirFS(filepath.Dir(override)), filepath.Base(override)
	}
	return defaults, embedded
}

// jsonFiles lists the *.json files in dir, sorted by name.
func jsonFiles(fsys fs.FS, dir string) ([]string, error) {
	if _, err := fs.Stat(fsys, dir); err != nil {
		return nil, fmt.Errorf("seed directory %s: %w", dir, err)
	}
	files, err := fs.Glob(fsys, path.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	return files, nil
}

func collectionName(file string) string {
	return strings.TrimSuffix(path.Base(file), ".json")
}

// LoadCollections reads every <name>.json file in dir as {id: record}.
// Records keep the order they have in the file.
func LoadCollections(fsys fs.FS, dir string) ([]storage.Collection, error) {
	files, err := jsonFiles(fsys, dir)
	if err != nil {
		return nil, err
	}

	out := make([]storage.Collection, 0, len(files))
	for _, file := range files {
		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		entries, err := decodeEntries(raw)
		if err != nil {
			return nil, fmt.Errorf("%w %s: %v", ErrInvalidSeed, file, err)
		}
		out = append(out, storage.Collection{Name: collectionName(file), Entries: entries})
	}
	return out, nil
}

// decodeEntries walks the top-level object token by token so that key
// order survives decoding.
func decodeEntries(raw []byte) ([]storage.Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("expected a JSON object")
	}

	var entries []storage.Entry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		id, _ := tok.(string)

		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("record %q: %w", id, err)
		}
		if rec == nil {
			return nil, fmt.Errorf("record %q is not an object", id)
		}
		entries = append(entries, storage.Entry{ID: id, Record: rec})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return entries, nil
}

// LoadDocuments reads every <name>.json file in dir as a free-form document.
func LoadDocuments(fsys fs.FS, dir string) (map[string]any, error) {
	files, err := jsonFiles(fsys, dir)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(files))
	for _, file := range files {
		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%w %s: %v", ErrInvalidSeed, file, err)
		}
		out[collectionName(file)] = doc
	}
	return out, nil
}

// LoadRules reads a YAML (or JSON) rule file.
func LoadRules(fsys fs.FS, name string) (rules.Config, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", name, err)
	}

	var cfg rules.Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", name, err)
	}
	return cfg, nil
}
