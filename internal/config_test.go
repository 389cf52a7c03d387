package internal

import (
	"strings"
	"testing"
	"time"

	"github.com/starford/onexport/internal/models"
	pkgconfig "github.com/starford/onexport/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	gc := cfg.Export.Generator()
	if gc.Extension != "yaml" || gc.RawFilename != "notebook.xml" {
		t.Errorf("generator config = %+v", gc)
	}
}

func TestExportConfig_Invalid(t *testing.T) {
	cases := map[string]func(*ExportConfig){
		"empty root":         func(c *ExportConfig) { c.Root = "" },
		"collection slash":   func(c *ExportConfig) { c.Collection = "a/b" },
		"reserved extension": func(c *ExportConfig) { c.Extension = "xml" },
		"dotted extension":   func(c *ExportConfig) { c.Extension = ".yaml" },
		"negative workers":   func(c *ExportConfig) { c.Workers = -1 },
		"unknown owner mode": func(c *ExportConfig) { c.Owner.Mode = "guess" },
		"zero prefix length": func(c *ExportConfig) { c.Owner.Length = 0 },
	}
	for name, mutate := range cases {
		cfg := NewDefaultConfig()
		mutate(&cfg.Export)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestOwnerConfig_Containment(t *testing.T) {
	cfg := OwnerConfig{Mode: "containment"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("containment without length should pass: %v", err)
	}
	r, err := cfg.Resolver()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.(models.ContainmentResolver); !ok {
		t.Errorf("resolver = %T", r)
	}
}

func TestOwnerConfig_EmptyModeDefaultsPrefix(t *testing.T) {
	cfg := OwnerConfig{Length: 16, Offset: 2}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != models.OwnerModePrefix {
		t.Errorf("mode = %q", cfg.Mode)
	}
}

func TestShippedConfig_Loads(t *testing.T) {
	t.Setenv("ONEXPORT_HIERARCHY", "/tmp/hierarchy.xml")
	t.Setenv("ONEXPORT_PAGES_DIR", "")
	t.Setenv("ONEXPORT_API_TOKEN", "")

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load("../config/config.yaml", cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source.Hierarchy != "/tmp/hierarchy.xml" {
		t.Errorf("hierarchy = %q", cfg.Source.Hierarchy)
	}
	if cfg.Watch.Debounce != 300*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Watch.Debounce)
	}
	if cfg.Export.Owner.Mode != models.OwnerModePrefix || cfg.Export.Owner.Length != 16 {
		t.Errorf("owner = %+v", cfg.Export.Owner)
	}
}
