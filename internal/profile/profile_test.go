package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testProfilesYAML = `default_profile: minio

profiles:
  minio:
    storage:
      backend: s3
      config:
        endpoint_url: http://localhost:9000
        access_key_id: minioadmin
        secret_access_key: minioadmin
        bucket_name: flowstore
  production:
    storage:
      backend: aws_s3
      config:
        aws_access_key_id: AKIA000
        aws_secret_access_key: secret
        aws_region_name: eu-central-1
        aws_bucket_name: flowstore-prod
  azure:
    storage:
      backend: azure_blob
      config:
        container_name: flowstore
        connection_string: "DefaultEndpointsProtocol=https;AccountName=test;AccountKey=dGVzdGtleQ==;EndpointSuffix=core.windows.net"
`

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing profiles file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	file, err := Load(writeProfiles(t, testProfilesYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if file.DefaultProfile != "minio" {
		t.Errorf("DefaultProfile = %q, want %q", file.DefaultProfile, "minio")
	}
	if len(file.Profiles) != 3 {
		t.Fatalf("loaded %d profiles, want 3", len(file.Profiles))
	}
	p := file.Profiles["production"]
	if p.Name != "production" {
		t.Errorf("Name = %q, want %q (set from map key)", p.Name, "production")
	}
	if p.Storage.Backend != BackendAWSS3 {
		t.Errorf("Backend = %q, want %q", p.Storage.Backend, BackendAWSS3)
	}
	if got := p.Storage.Config["aws_region_name"]; got != "eu-central-1" {
		t.Errorf("aws_region_name = %q, want %q", got, "eu-central-1")
	}
}

func TestLoadSingleProfileBecomesDefault(t *testing.T) {
	file, err := Load(writeProfiles(t, `profiles:
  only:
    storage:
      backend: s3
      config:
        bucket_name: b
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if file.DefaultProfile != "only" {
		t.Errorf("a lone profile should become the default, got %q", file.DefaultProfile)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load of a missing file should fail")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	if _, err := Load(writeProfiles(t, "profiles: [not: a: mapping")); err == nil {
		t.Error("Load of malformed YAML should fail")
	}
}

func TestGet(t *testing.T) {
	file, err := Load(writeProfiles(t, testProfilesYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	p, err := file.Get("")
	if err != nil {
		t.Fatalf("Get(\"\") failed: %v", err)
	}
	if p.Name != "minio" {
		t.Errorf("Get(\"\") = %q, want default profile %q", p.Name, "minio")
	}

	p, err = file.Get("azure")
	if err != nil {
		t.Fatalf("Get(azure) failed: %v", err)
	}
	if p.Storage.Backend != BackendAzureBlob {
		t.Errorf("Backend = %q, want %q", p.Storage.Backend, BackendAzureBlob)
	}

	if _, err := file.Get("missing"); err == nil {
		t.Error("Get of an unknown profile should fail")
	}
}

func TestGetNoDefault(t *testing.T) {
	file := &File{Profiles: map[string]*Profile{
		"a": {Name: "a"},
		"b": {Name: "b"},
	}}
	if _, err := file.Get(""); err == nil {
		t.Error("Get(\"\") with no default should fail")
	}
}

func TestValidate(t *testing.T) {
	file, err := Load(writeProfiles(t, testProfilesYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	for name, p := range file.Profiles {
		if err := p.Validate(); err != nil {
			t.Errorf("profile %q should validate: %v", name, err)
		}
	}
}

func TestValidateMissingKey(t *testing.T) {
	p := &Profile{
		Name: "broken",
		Storage: StorageConfig{
			Backend: BackendS3,
			Config: map[string]string{
				"endpoint_url":  "http://localhost:9000",
				"access_key_id": "ak",
			},
		},
	}
	err := p.Validate()
	if err == nil {
		t.Fatal("Validate with missing keys should fail")
	}
	if !strings.Contains(err.Error(), "secret_access_key") {
		t.Errorf("error should name the missing key, got: %v", err)
	}
}

func TestValidateUnknownBackend(t *testing.T) {
	p := &Profile{
		Name:    "broken",
		Storage: StorageConfig{Backend: "gopher_drive"},
	}
	if err := p.Validate(); err == nil {
		t.Error("Validate with an unknown backend should fail")
	}
}

func TestConfigValue(t *testing.T) {
	p := &Profile{
		Name: "test",
		Storage: StorageConfig{
			Backend: BackendS3,
			Config:  map[string]string{"bucket_name": "flowstore"},
		},
	}
	value, err := p.ConfigValue("bucket_name")
	if err != nil {
		t.Fatalf("ConfigValue failed: %v", err)
	}
	if value != "flowstore" {
		t.Errorf("ConfigValue = %q, want %q", value, "flowstore")
	}
	if _, err := p.ConfigValue("endpoint_url"); err == nil {
		t.Error("ConfigValue of a missing key should fail")
	}
}
