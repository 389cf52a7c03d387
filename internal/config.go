package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/onexport/internal/generator"
	"github.com/starford/onexport/internal/models"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Export ExportConfig      `yaml:"export"`
	Source SourceConfig      `yaml:"source"`
	Watch  WatchConfig       `yaml:"watch"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Export.Validate(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := c.Watch.Validate(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

var collectionRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ExportConfig locates the generated tree.
type ExportConfig struct {
	Root        string      `yaml:"root"`
	Collection  string      `yaml:"collection"`
	Extension   string      `yaml:"extension"`
	RawFilename string      `yaml:"raw_filename"`
	Workers     int         `yaml:"workers"`
	Owner       OwnerConfig `yaml:"owner"`
}

// Validate validates the export configuration.
func (c *ExportConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Collection, validation.Required, validation.Match(collectionRe)),
		validation.Field(&c.Extension, validation.Match(regexp.MustCompile(`^[a-z0-9]+$`)),
			validation.NotIn(generator.BodyExtension).Error("is reserved for page bodies")),
		validation.Field(&c.RawFilename, validation.Match(collectionRe)),
		validation.Field(&c.Workers, validation.Min(0)),
	); err != nil {
		return err
	}
	return c.Owner.Validate()
}

// Generator returns the generator settings.
func (c *ExportConfig) Generator() generator.Config {
	return generator.Config{
		Root:        c.Root,
		Collection:  c.Collection,
		Extension:   c.Extension,
		RawFilename: c.RawFilename,
		Workers:     c.Workers,
	}
}

// OwnerConfig selects how pages are attributed to sections.
//
// Mode "prefix" (default) reads the owning section id from
// page.ID[Offset:Offset+Length]. Mode "containment" uses the section element
// the page was found in.
type OwnerConfig struct {
	Mode   string `yaml:"mode"`
	Offset int    `yaml:"offset"`
	Length int    `yaml:"length"`
}

// Validate validates the owner configuration.
func (c *OwnerConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = models.OwnerModePrefix
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.In(models.OwnerModePrefix, models.OwnerModeContainment)),
		validation.Field(&c.Offset, validation.Min(0)),
		validation.Field(&c.Length, validation.When(c.Mode == models.OwnerModePrefix, validation.Required, validation.Min(1))),
	)
}

// Resolver builds the configured owner resolver.
func (c *OwnerConfig) Resolver() (models.OwnerResolver, error) {
	return models.NewResolver(c.Mode, c.Offset, c.Length)
}

// SourceConfig locates markup exported by the host application.
// PagesDir holds one <page-id>.xml per page body and may be empty.
type SourceConfig struct {
	Hierarchy string `yaml:"hierarchy"`
	PagesDir  string `yaml:"pages_dir"`
}

// WatchConfig tunes the hierarchy watcher.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Export: ExportConfig{
			Root:        "./site",
			Collection:  "notebooks",
			Extension:   generator.DefaultExtension,
			RawFilename: generator.DefaultRawFilename,
			Owner: OwnerConfig{
				Mode:   models.OwnerModePrefix,
				Offset: models.DefaultOwnerOffset,
				Length: models.DefaultOwnerLength,
			},
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 300 * time.Millisecond,
		},
		SQLite: SQLiteConfig{
			Path: "./onexport.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
