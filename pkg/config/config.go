// Package config loads receiptor configuration from a JSON file, the environment
// and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	kJson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/ArionMiles/receiptor/pkg/api"
)

// Defaults.
const (
	DefaultOutDir          = "out"
	DefaultOutFile         = "receipts.pdf"
	DefaultCredentialsFile = "data/client_secret.json"
	DefaultTokenFile       = "data/token.json"
	DefaultSheetName       = "Sheet1"
)

// DateLayout is the format of start-date and end-date.
const DateLayout = time.DateOnly

// EnvPrefix prefixes environment variables, e.g. RECEIPTOR_OUT_DIR.
const EnvPrefix = "RECEIPTOR_"

// Config holds the application configuration.
type Config struct {
	// OutDir receives the artifacts and the summary file.
	OutDir string `koanf:"out-dir"`
	// StartDate and EndDate bound the download, both inclusive. StartDate defaults
	// to the first day of the current month, EndDate to now.
	StartDate string `koanf:"start-date"`
	EndDate   string `koanf:"end-date"`
	// Vendors restricts processing to these extractor names. Empty means all.
	Vendors []string `koanf:"vendors"`
	// Artifacts are the per-message artifact kinds to write.
	Artifacts        []string `koanf:"artifacts"`
	MaxResults       int64    `koanf:"max-results"`
	FetchConcurrency int      `koanf:"fetch-concurrency"`
	WriteAttempts    uint     `koanf:"write-attempts"`

	// Credentials is the Google OAuth client secret file.
	Credentials string `koanf:"credentials"`
	// Token is where the OAuth token is cached.
	Token string `koanf:"token"`
	// Mbox reads messages from a local archive instead of Gmail.
	Mbox string `koanf:"mbox"`

	InDir       string `koanf:"in-dir"`
	OutFile     string `koanf:"out-file"`
	Concatenate bool   `koanf:"concatenate"`
	CSVOut      string `koanf:"csv-out"`
	SheetID     string `koanf:"sheet-id"`
	SheetTitle  string `koanf:"sheet-title"`
	SheetName   string `koanf:"sheet-name"`

	// Wkhtmltopdf is the renderer executable.
	Wkhtmltopdf string `koanf:"wkhtmltopdf"`
	PageWidth   string `koanf:"page-width"`
	PageHeight  string `koanf:"page-height"`
}

// Load reads configFile (optional), then RECEIPTOR_* environment variables, then
// the flags that were explicitly set. Flag defaults fill keys no other source set.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), kJson.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configFile, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("loading config from flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Vendors = splitList(cfg.Vendors)
	cfg.Artifacts = splitList(cfg.Artifacts)

	return &cfg, nil
}

// envKey maps RECEIPTOR_OUT_DIR to out-dir.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", "-")
}

// splitList flattens comma-separated items, as delivered by environment variables.
func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// DateRange resolves the download range relative to now. The end date is inclusive,
// so the returned end is the start of the following day.
func (c *Config) DateRange(now time.Time) (start, end time.Time, err error) {
	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	if c.StartDate != "" {
		if start, err = time.ParseInLocation(DateLayout, c.StartDate, now.Location()); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing start-date: %w", err)
		}
	}

	end = now
	if c.EndDate != "" {
		day, err := time.ParseInLocation(DateLayout, c.EndDate, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing end-date: %w", err)
		}
		end = day.AddDate(0, 0, 1)
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start-date %s is not before end-date %s", start.Format(DateLayout), end.Format(DateLayout))
	}
	return start, end, nil
}

// ArtifactKinds parses Artifacts. Empty selects every kind.
func (c *Config) ArtifactKinds() ([]api.ArtifactKind, error) {
	if len(c.Artifacts) == 0 {
		return api.AllArtifactKinds, nil
	}

	kinds := make([]api.ArtifactKind, 0, len(c.Artifacts))
	for _, name := range c.Artifacts {
		kind, ok := api.ParseArtifactKind(strings.ToLower(name))
		if !ok {
			return nil, fmt.Errorf("unknown artifact kind %q", name)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// ValidateDownload checks the settings used by the download command.
func (c *Config) ValidateDownload(now time.Time) error {
	var errs []error
	if c.OutDir == "" {
		errs = append(errs, errors.New("out-dir is required"))
	}
	if _, _, err := c.DateRange(now); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.ArtifactKinds(); err != nil {
		errs = append(errs, err)
	}
	if c.MaxResults < 0 {
		errs = append(errs, errors.New("max-results must not be negative"))
	}
	if c.Mbox == "" && c.Credentials == "" {
		errs = append(errs, errors.New("either credentials or mbox is required"))
	}
	return errors.Join(errs...)
}

// ValidateCollate checks the settings used by the collate command.
func (c *Config) ValidateCollate() error {
	var errs []error
	if c.InDir == "" {
		errs = append(errs, errors.New("in-dir is required"))
	}
	if c.OutFile == "" {
		errs = append(errs, errors.New("out-file is required"))
	}
	if c.SheetID != "" || c.SheetTitle != "" {
		if c.SheetName == "" {
			errs = append(errs, errors.New("sheet-name is required when exporting to a sheet"))
		}
		if c.Credentials == "" {
			errs = append(errs, errors.New("credentials are required when exporting to a sheet"))
		}
	}
	return errors.Join(errs...)
}

// RenderOptions returns the configured page size.
func (c *Config) RenderOptions() api.RenderOptions {
	return api.RenderOptions{Width: c.PageWidth, Height: c.PageHeight}
}
