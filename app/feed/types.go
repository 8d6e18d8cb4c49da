package feed

import (
	"time"
)

const (
	ParserStream   = "stream"
	ParserBuffered = "buffered"
)

// Per-feed configuration, one YAML file per feed

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled       bool              `yaml:"enabled"`
	Interval      int               `yaml:"interval"` // minutes
	ForceInterval bool              `yaml:"force_interval"`
	EmitOnStart   bool              `yaml:"emit_on_start"`
	MaxHistory    int               `yaml:"max_history"`
	SkipHours     bool              `yaml:"skip_hours"`
	HoursToSkip   []int             `yaml:"hours_to_skip"`
	SkipDays      bool              `yaml:"skip_days"`
	DaysToSkip    []string          `yaml:"days_to_skip"`
	ReadEveryItem bool              `yaml:"read_every_item"`
	Timeout       int               `yaml:"timeout"` // seconds
	Parser        string            `yaml:"parser"`  // stream | buffered
	Headers       map[string]string `yaml:"headers"`
}

func (s ConfigSettings) IntervalDuration() time.Duration {
	return time.Duration(s.Interval) * time.Minute
}

func (s ConfigSettings) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// FilteredItem is an item together with the verdict of the configured filters.
type FilteredItem struct {
	Item         *Item
	IsFiltered   bool
	FilterReason string
}
