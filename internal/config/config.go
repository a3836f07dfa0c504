// Package config resolves familytree settings from defaults, an optional
// YAML or TOML file, FAMILYTREE_* environment variables and command-line
// overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"familytree/internal/blob"
	"familytree/internal/core"
	"familytree/internal/infra/persistence/jsonfile"
	"familytree/internal/infra/persistence/postgres"
	"familytree/internal/infra/persistence/sqlite"
	"familytree/pkg/domain"

	"github.com/go-playground/validator/v10"
)

// Config is the resolved application configuration.
type Config struct {
	Storage Storage `yaml:"storage" toml:"storage"`
	Blob    Blob    `yaml:"blob" toml:"blob"`
	Log     Log     `yaml:"log" toml:"log"`
	HTTP    HTTP    `yaml:"http" toml:"http"`
	Trace   Sink    `yaml:"trace" toml:"trace"`
	Audit   Sink    `yaml:"audit" toml:"audit"`
}

// Storage selects the snapshot backend.
type Storage struct {
	Driver      string `yaml:"driver" toml:"driver" validate:"oneof=json sqlite postgres memory"`
	Path        string `yaml:"path" toml:"path"`
	PostgresDSN string `yaml:"postgres_dsn" toml:"postgres_dsn"`
}

// Blob selects the store that holds backups.
type Blob struct {
	Driver string        `yaml:"driver" toml:"driver" validate:"oneof=fs memory s3"`
	FSRoot string        `yaml:"fs_root" toml:"fs_root"`
	S3     blob.S3Config `yaml:"s3" toml:"s3"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `yaml:"level" toml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" toml:"format" validate:"oneof=console json"`
}

// HTTP configures the serve command.
type HTTP struct {
	Addr string `yaml:"addr" toml:"addr" validate:"required"`
}

// Sink names a JSON-lines file that trace spans or audit entries are
// appended to. An empty path disables it.
type Sink struct {
	Path string `yaml:"path" toml:"path"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Storage: Storage{Driver: string(core.StorageJSON)},
		Blob:    Blob{Driver: string(blob.DriverFilesystem), FSRoot: "./blobdata"},
		Log:     Log{Level: "warn", Format: "console"},
		HTTP:    HTTP{Addr: ":8080"},
	}
}

// Overrides carries command-line flags. Empty fields leave the config as is.
type Overrides struct {
	ConfigPath string
	DataPath   string
	Storage    string
	LogLevel   string
}

// Apply copies the non-empty overrides onto c.
func (c *Config) Apply(o Overrides) {
	if o.Storage != "" {
		c.Storage.Driver = o.Storage
	}
	if o.DataPath != "" {
		c.Storage.Path = o.DataPath
	}
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
}

// finalize normalises case and fills the data path for the chosen driver.
func (c *Config) finalize() {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Blob.Driver = strings.ToLower(strings.TrimSpace(c.Blob.Driver))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Storage.Driver == "" {
		c.Storage.Driver = string(core.StorageJSON)
	}
	if c.Blob.Driver == "" {
		c.Blob.Driver = string(blob.DriverFilesystem)
	}
	if c.Storage.Path == "" {
		switch core.StorageDriver(c.Storage.Driver) {
		case core.StorageSQLite:
			c.Storage.Path = sqlite.DefaultPath
		case core.StorageJSON:
			c.Storage.Path = jsonfile.DefaultPath
		}
	}
	if c.Storage.PostgresDSN == "" && core.StorageDriver(c.Storage.Driver) == core.StoragePostgres {
		c.Storage.PostgresDSN = postgres.DefaultDSN
	}
}

// Validate normalises c and checks every field. The first failure is
// returned as a domain.ValidationError naming the offending key.
func (c *Config) Validate() error {
	c.finalize()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return domain.ValidationError{
				Field:   strings.TrimPrefix(fe.Namespace(), "Config."),
				Message: fmt.Sprintf("invalid value %q (%s %s)", fmt.Sprint(fe.Value()), fe.Tag(), fe.Param()),
			}
		}
		return err
	}
	if c.Blob.Driver == string(blob.DriverS3) && strings.TrimSpace(c.Blob.S3.Bucket) == "" {
		return domain.ValidationError{Field: "blob.s3.bucket", Message: "bucket is required for the s3 driver"}
	}
	return nil
}

// StorageOptions converts the storage section for core.OpenSnapshotStore.
func (c Config) StorageOptions() core.StorageOptions {
	return core.StorageOptions{
		Driver:      core.StorageDriver(c.Storage.Driver),
		Path:        c.Storage.Path,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// BlobOptions converts the blob section for blob.Open.
func (c Config) BlobOptions() blob.Options {
	return blob.Options{Driver: blob.Driver(c.Blob.Driver), FSRoot: c.Blob.FSRoot, S3: c.Blob.S3}
}

// LogOptions converts the log section for core.NewLogger.
func (c Config) LogOptions() core.LogOptions {
	return core.LogOptions{Level: c.Log.Level, Format: c.Log.Format}
}
