// Package bulletin keeps the identity database in sync with the published
// missing-person bulletins. Refreshes run in the background, at most one at a
// time, and replace the database only when a run completes.
package bulletin

import (
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/teslashibe/go-vigia/internal/httpc"
)

// Defaults for the state bulletin site.
const (
	DefaultListingURL  = "https://cobupem.edomex.gob.mx/boletines-personas-desaparecidas"
	DefaultBaseURL     = "https://cobupem.edomex.gob.mx"
	DefaultLinkPattern = `/sites/cobupem\.edomex\.gob\.mx/files/images/Desaparecidos/\d{4}/[^/"]+/[^"]+\.jpg`
	DefaultYearPattern = `/Desaparecidos/(\d{4})/`

	DefaultFreshness     = 24 * time.Hour
	DefaultCheckInterval = time.Hour
)

// Config holds sync settings.
type Config struct {
	ListingURL  string `yaml:"listing_url"`
	BaseURL     string `yaml:"base_url"`     // Resolves relative links found in the listing
	LinkPattern string `yaml:"link_pattern"` // Regexp matching bulletin image links
	YearPattern string `yaml:"year_pattern"` // Regexp whose first group is the bulletin year

	DataDir    string `yaml:"data_dir"`    // Root of <year>/bulletins and <year>/crops
	DBPath     string `yaml:"db_path"`     // Identity database file
	MarkerPath string `yaml:"marker_path"` // Last successful sync timestamp

	Freshness     time.Duration `yaml:"freshness"`      // Maximum database age before a refresh
	CheckInterval time.Duration `yaml:"check_interval"` // How often staleness is checked
	UserAgent     string        `yaml:"user_agent"`
}

// DefaultConfig returns the settings for the given data directory.
func DefaultConfig(dataDir string) Config {
	return Config{
		ListingURL:    DefaultListingURL,
		BaseURL:       DefaultBaseURL,
		LinkPattern:   DefaultLinkPattern,
		YearPattern:   DefaultYearPattern,
		DataDir:       dataDir,
		DBPath:        filepath.Join(dataDir, "identities.db"),
		MarkerPath:    filepath.Join(dataDir, "last_sync.txt"),
		Freshness:     DefaultFreshness,
		CheckInterval: DefaultCheckInterval,
		UserAgent:     httpc.DefaultUserAgent,
	}
}

// Validate checks the settings and compiles the patterns.
func (c Config) Validate() error {
	_, _, err := c.patterns()
	if err != nil {
		return err
	}
	switch {
	case c.ListingURL == "":
		return fmt.Errorf("bulletin: listing url required")
	case c.DataDir == "" || c.DBPath == "" || c.MarkerPath == "":
		return fmt.Errorf("bulletin: data dir, db path and marker path required")
	case c.Freshness <= 0:
		return fmt.Errorf("bulletin: freshness must be positive")
	case c.CheckInterval <= 0:
		return fmt.Errorf("bulletin: check interval must be positive")
	}
	return nil
}

func (c Config) patterns() (link, year *regexp.Regexp, err error) {
	if link, err = regexp.Compile(c.LinkPattern); err != nil {
		return nil, nil, fmt.Errorf("bulletin: link pattern: %w", err)
	}
	if year, err = regexp.Compile(c.YearPattern); err != nil {
		return nil, nil, fmt.Errorf("bulletin: year pattern: %w", err)
	}
	if year.NumSubexp() < 1 {
		return nil, nil, fmt.Errorf("bulletin: year pattern needs a capture group")
	}
	return link, year, nil
}
