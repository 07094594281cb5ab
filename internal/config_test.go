package internal

import (
	"strings"
	"testing"

	pkgconfig "github.com/starford/quire/pkg/config"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestSiteConfig_RelativeURLRejected(t *testing.T) {
	cfg := SiteConfig{Title: "t", URL: "example.com/blog"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("relative url should fail")
	}
	if !strings.Contains(err.Error(), "must be absolute") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSiteConfig_Normalises(t *testing.T) {
	cfg := SiteConfig{Title: "t", URL: "https://example.com/", BaseURL: "blog/"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.URL != "https://example.com" {
		t.Errorf("url = %q", cfg.URL)
	}
	if cfg.BaseURL != "/blog" {
		t.Errorf("baseurl = %q", cfg.BaseURL)
	}
}

func TestBuildConfig_EmptyPermalinkDefaults(t *testing.T) {
	cfg := NewDefaultConfig().Build
	cfg.Permalink = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Permalink != DefaultPermalink {
		t.Errorf("permalink = %q", cfg.Permalink)
	}
}

func TestBuildConfig_RelativePermalinkRejected(t *testing.T) {
	cfg := NewDefaultConfig().Build
	cfg.Permalink = ":year/:title"
	if err := cfg.Validate(); err == nil {
		t.Fatal("permalink without leading slash should fail")
	}
}

func TestBuildConfig_RevisionNeedsExtensions(t *testing.T) {
	cfg := NewDefaultConfig().Build
	cfg.Revision.Extensions = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("revision without extensions should fail")
	}
}

func TestTLSConfig_EnabledNeedsFiles(t *testing.T) {
	cfg := TLSConfig{Enabled: true}
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled TLS without files should fail")
	}
	cfg = TLSConfig{Enabled: false}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled TLS should pass: %v", err)
	}
}

func TestDecode_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("QUIRE_TEST_TOKEN", "s3cret")
	cfg := NewDefaultConfig()
	data := []byte("site:\n  title: Notes\n  url: https://notes.example\ndeploy:\n  token: ${QUIRE_TEST_TOKEN}\n")
	if err := pkgconfig.Decode(data, cfg); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Deploy.Token != "s3cret" {
		t.Errorf("token = %q", cfg.Deploy.Token)
	}
	if cfg.Site.Title != "Notes" {
		t.Errorf("title = %q", cfg.Site.Title)
	}
	if cfg.Build.WordsPerMinute != 200 {
		t.Errorf("default words_per_minute lost: %d", cfg.Build.WordsPerMinute)
	}
}

func TestLoadOptional_MissingFileUsesDefaults(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := pkgconfig.LoadOptional(t.TempDir()+"/absent.yaml", cfg); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Build.Destination != "_site" {
		t.Errorf("destination = %q", cfg.Build.Destination)
	}
}
