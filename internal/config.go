package internal

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/quire/internal/site"
)

// DefaultPermalink is the post URL pattern used when none is configured.
const DefaultPermalink = site.DefaultPermalink

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Site   SiteConfig        `yaml:"site"`
	Build  BuildConfig       `yaml:"build"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Deploy DeployConfig      `yaml:"deploy"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Site.Validate(); err != nil {
		return err
	}
	if err := c.Build.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Deploy.Validate()
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

// HTTPConfig holds dev server configuration.
type HTTPConfig struct {
	Host string    `yaml:"host"`
	Port int       `yaml:"port"`
	TLS  TLSConfig `yaml:"tls"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	); err != nil {
		return err
	}
	return c.TLS.Validate()
}

// TLSConfig points the dev server at a certificate pair, usually one made by
// "quire cert".
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Validate validates the TLS configuration.
func (c *TLSConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.CertFile, validation.Required),
		validation.Field(&c.KeyFile, validation.Required),
	)
}

// AuthorConfig identifies the site author.
type AuthorConfig struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	URI   string `yaml:"uri"`
}

// SiteConfig holds the values layouts see under .Site.
type SiteConfig struct {
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	URL         string         `yaml:"url"`
	BaseURL     string         `yaml:"baseurl"`
	Author      AuthorConfig   `yaml:"author"`
	Params      map[string]any `yaml:"params"`
}

// Validate validates the site configuration.
func (c *SiteConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Title, validation.Required),
		validation.Field(&c.URL, validation.Required),
	); err != nil {
		return err
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("site: url %q must be absolute", c.URL)
	}
	c.URL = strings.TrimRight(c.URL, "/")
	if c.BaseURL != "" {
		c.BaseURL = "/" + strings.Trim(c.BaseURL, "/")
	}
	return nil
}

// RevisionConfig controls content-hash renaming of assets.
type RevisionConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Extensions []string `yaml:"extensions"`
	Manifest   string   `yaml:"manifest"`
}

// BuildConfig holds build pipeline configuration.
type BuildConfig struct {
	Source         string         `yaml:"source"`
	Destination    string         `yaml:"destination"`
	Permalink      string         `yaml:"permalink"`
	Drafts         bool           `yaml:"drafts"`
	Future         bool           `yaml:"future"`
	Exclude        []string       `yaml:"exclude"`
	KeepFiles      []string       `yaml:"keep_files"`
	Minify         bool           `yaml:"minify"`
	Revision       RevisionConfig `yaml:"revision"`
	WordsPerMinute int            `yaml:"words_per_minute"`
	FeedLimit      int            `yaml:"feed_limit"`
	HighlightStyle string         `yaml:"highlight_style"`
}

// Validate validates the build configuration.
func (c *BuildConfig) Validate() error {
	if c.Permalink == "" {
		c.Permalink = DefaultPermalink
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Source, validation.Required),
		validation.Field(&c.Destination, validation.Required),
		validation.Field(&c.WordsPerMinute, validation.Required, validation.Min(1)),
		validation.Field(&c.FeedLimit, validation.Min(0)),
	); err != nil {
		return err
	}
	if !strings.HasPrefix(c.Permalink, "/") {
		return fmt.Errorf("build: permalink %q must start with /", c.Permalink)
	}
	if c.Revision.Enabled && len(c.Revision.Extensions) == 0 {
		return fmt.Errorf("build: revision enabled but no extensions listed")
	}
	return nil
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

// DeployConfig describes the GitHub Pages target.
type DeployConfig struct {
	Remote      string `yaml:"remote"`
	Branch      string `yaml:"branch"`
	Token       string `yaml:"token"`
	CNAME       string `yaml:"cname"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
	Message     string `yaml:"message"`
}

// Validate validates the deploy configuration. An empty remote is allowed;
// "quire deploy" checks for it before doing anything.
func (c *DeployConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Branch, validation.Required),
		validation.Field(&c.AuthorName, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Host: "127.0.0.1",
				Port: 4000,
				TLS: TLSConfig{
					CertFile: "certs/localhost.pem",
					KeyFile:  "certs/localhost-key.pem",
				},
			},
		},
		Site: SiteConfig{
			Title: "My Blog",
			URL:   "http://localhost:4000",
		},
		Build: BuildConfig{
			Source:      ".",
			Destination: "_site",
			Permalink:   DefaultPermalink,
			Exclude: []string{
				"quire.yaml", "README.md", "LICENSE", "go.mod", "go.sum",
				"node_modules", "vendor", "certs", "*.db",
			},
			Minify: true,
			Revision: RevisionConfig{
				Enabled: true,
				Extensions: []string{
					".css", ".js", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".woff", ".woff2",
				},
				Manifest: "rev-manifest.json",
			},
			WordsPerMinute: 200,
			FeedLimit:      20,
			HighlightStyle: "github",
		},
		SQLite: SQLiteConfig{
			Path: "./.quire/posts.db",
		},
		Deploy: DeployConfig{
			Branch:      "gh-pages",
			AuthorName:  "quire",
			AuthorEmail: "quire@localhost",
			Message:     "Publish site",
		},
	}
}
