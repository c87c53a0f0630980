// Package profile handles loading and parsing of flowstore profiles.
//
// A profile is a named configuration bundle from which one repository
// backend instance is constructed: the backend kind plus the flat key-value
// storage configuration (credentials, location name) that kind requires.
package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Backend kinds a profile can select.
const (
	BackendS3        = "s3"
	BackendAWSS3     = "aws_s3"
	BackendAzureBlob = "azure_blob"
)

// requiredKeys lists the storage config keys each backend kind requires.
var requiredKeys = map[string][]string{
	BackendS3:        {"endpoint_url", "access_key_id", "secret_access_key", "bucket_name"},
	BackendAWSS3:     {"aws_access_key_id", "aws_secret_access_key", "aws_region_name", "aws_bucket_name"},
	BackendAzureBlob: {"container_name", "connection_string"},
}

// Profile is one named configuration bundle.
type Profile struct {
	// Name is the profile's name, set from its key in the profiles file.
	Name string `yaml:"-"`
	// Storage selects and configures the repository backend.
	Storage StorageConfig `yaml:"storage"`
}

// StorageConfig selects the backend kind and carries its flat configuration
// mapping.
type StorageConfig struct {
	// Backend is the backend kind: "s3", "aws_s3", or "azure_blob".
	Backend string `yaml:"backend"`
	// Config holds the backend-specific keys (credentials, location name).
	Config map[string]string `yaml:"config"`
}

// File is a parsed profiles file: a set of named profiles plus the default
// profile name.
type File struct {
	// DefaultProfile names the profile used when none is requested.
	DefaultProfile string `yaml:"default_profile"`
	// Profiles maps profile names to their configuration.
	Profiles map[string]*Profile `yaml:"profiles"`
}

// Load reads a YAML profiles file from the given path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profiles file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing profiles file: %w", err)
	}

	for name, p := range file.Profiles {
		if p == nil {
			return nil, fmt.Errorf("profile %q is empty", name)
		}
		p.Name = name
		if p.Storage.Config == nil {
			p.Storage.Config = map[string]string{}
		}
	}

	if file.DefaultProfile == "" && len(file.Profiles) == 1 {
		for name := range file.Profiles {
			file.DefaultProfile = name
		}
	}

	return &file, nil
}

// Get returns the named profile, or the default profile when name is empty.
func (f *File) Get(name string) (*Profile, error) {
	if name == "" {
		name = f.DefaultProfile
	}
	if name == "" {
		return nil, fmt.Errorf("no profile requested and no default profile configured")
	}
	p, ok := f.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile %q does not exist", name)
	}
	return p, nil
}

// Validate checks that the profile selects a known backend kind and carries
// every storage config key that kind requires.
func (p *Profile) Validate() error {
	keys, ok := requiredKeys[p.Storage.Backend]
	if !ok {
		return fmt.Errorf("profile %q: unknown storage backend %q", p.Name, p.Storage.Backend)
	}
	for _, key := range keys {
		if p.Storage.Config[key] == "" {
			return fmt.Errorf("profile %q: storage config key %q is required for backend %q", p.Name, key, p.Storage.Backend)
		}
	}
	return nil
}

// ConfigValue returns the value of a storage config key, failing when the
// key is missing or empty.
func (p *Profile) ConfigValue(key string) (string, error) {
	value := p.Storage.Config[key]
	if value == "" {
		return "", fmt.Errorf("profile %q: storage config key %q is missing", p.Name, key)
	}
	return value, nil
}
