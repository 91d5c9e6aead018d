// Package project loads a sidas project file and turns it into the explicit
// asset registry, persistence adapters, and state store a run needs.
package project

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"sidas/internal/asset"
)

// DefaultFile is the project file looked up when no path is given.
const DefaultFile = "sidas.yaml"

// DefaultAdapter is the adapter name assets use when they do not set one.
const DefaultAdapter = "default"

// File is the on-disk project definition.
type File struct {
	Name string `yaml:"name"`
	// Fingerprint selects the fingerprint strategy: content (default) or version.
	Fingerprint string `yaml:"fingerprint"`
	// Timezone is the IANA zone cron schedules are evaluated in. Empty means UTC.
	Timezone string `yaml:"timezone"`

	State    StateSpec              `yaml:"state"`
	Adapters map[string]AdapterSpec `yaml:"adapters"`
	Assets   []AssetSpec            `yaml:"assets"`
}

type StateSpec struct {
	Type string `yaml:"type"` // memory, file, postgres
	Path string `yaml:"path"`
	DSN  string `yaml:"dsn"`
}

// AdapterSpec configures one persistence backend. Which fields apply depends
// on Type.
type AdapterSpec struct {
	Type   string `yaml:"type"` // memory, localfs, objectstore, postgres, columnar
	Root   string `yaml:"root"`
	Format string `yaml:"format"`

	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`

	DSN string `yaml:"dsn"`
}

type AssetSpec struct {
	Name        string              `yaml:"name"`
	Kind        string              `yaml:"kind"`
	Upstreams   []string            `yaml:"upstreams"`
	Schedule    string              `yaml:"schedule"`
	Refresh     asset.RefreshPolicy `yaml:"refresh"`
	Adapter     string              `yaml:"adapter"`
	Key         string              `yaml:"key"`
	Group       string              `yaml:"group"`
	Description string              `yaml:"description"`
	Params      map[string]any      `yaml:"params"`
}

var ErrNoAssets = errors.New("project declares no assets")

// Load reads and decodes path. ${VAR} references are expanded from the
// environment before decoding so credentials can stay out of the file.
// Unknown fields are rejected.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return f, nil
}

func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoAssets
		}
		return nil, err
	}
	if len(f.Assets) == 0 {
		return nil, ErrNoAssets
	}
	return &f, nil
}
