package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FAMILYTREE_"

// ProjectFiles are tried, in order, in the working directory when no
// config path is given.
var ProjectFiles = []string{"familytree.yaml", "familytree.yml", "familytree.toml"}

// Load resolves the configuration:
// 1. Defaults
// 2. The file at path, or the first of ProjectFiles present
// 3. FAMILYTREE_* environment variables
// 4. Command-line overrides
// and validates the result.
func Load(o Overrides) (Config, error) {
	cfg := Default()

	path := o.ConfigPath
	if path == "" {
		path = findProjectFile()
	}
	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}
	if err := loadFromEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Apply(o)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func findProjectFile() string {
	for _, name := range ProjectFiles {
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			return name
		}
	}
	return ""
}

// loadFile decodes by extension: .toml with BurntSushi/toml, everything
// else as YAML. Unknown keys are errors.
func loadFile(cfg *Config, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("unknown key %q", undecoded[0].String())
		}
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// loadFromEnv overrides config from FAMILYTREE_* variables.
func loadFromEnv(cfg *Config) error {
	strs := []struct {
		name   string
		target *string
	}{
		{"STORAGE", &cfg.Storage.Driver},
		{"DATA", &cfg.Storage.Path},
		{"POSTGRES_DSN", &cfg.Storage.PostgresDSN},
		{"BLOB_DRIVER", &cfg.Blob.Driver},
		{"BLOB_ROOT", &cfg.Blob.FSRoot},
		{"S3_REGION", &cfg.Blob.S3.Region},
		{"S3_BUCKET", &cfg.Blob.S3.Bucket},
		{"S3_ENDPOINT", &cfg.Blob.S3.Endpoint},
		{"LOG_LEVEL", &cfg.Log.Level},
		{"LOG_FORMAT", &cfg.Log.Format},
		{"HTTP_ADDR", &cfg.HTTP.Addr},
		{"TRACE_FILE", &cfg.Trace.Path},
		{"AUDIT_FILE", &cfg.Audit.Path},
	}
	for _, s := range strs {
		if v := os.Getenv(EnvPrefix + s.name); v != "" {
			*s.target = v
		}
	}
	if v := os.Getenv(EnvPrefix + "S3_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sS3_PATH_STYLE: %w", EnvPrefix, err)
		}
		cfg.Blob.S3.PathStyle = b
	}
	return nil
}
