package reader

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lysyi3m/feedsub/app/feed"
	"github.com/lysyi3m/feedsub/app/transport"
)

const (
	DefaultInterval   = 10 * time.Minute
	DefaultMaxHistory = 10
)

var weekdays = map[string]bool{
	"sunday":    true,
	"monday":    true,
	"tuesday":   true,
	"wednesday": true,
	"thursday":  true,
	"friday":    true,
	"saturday":  true,
}

// Options configures a Reader. Zero values fall back to the defaults listed
// on each field.
type Options struct {
	// Interval between polls once started. Default 10 minutes.
	Interval time.Duration
	// ForceInterval ignores a ttl advertised by the feed.
	ForceInterval bool
	// AutoStart begins polling, with an immediate first read, from New.
	AutoStart bool
	// EmitOnStart reports the items of the first cycle instead of only
	// recording them. Also lets the first cycle run inside a skip window.
	EmitOnStart bool

	// LastDate is the feed-level date seen on the previous run.
	LastDate string
	// History seeds the set of known fingerprints, newest first. A reader
	// started without history treats its first cycle as the baseline.
	History []string
	// MaxHistory bounds the number of remembered fingerprints. Default 10.
	MaxHistory int

	// SkipHours enables skipping during HoursToSkip, or during the hours
	// the feed declares when HoursToSkip is empty.
	SkipHours   bool
	HoursToSkip []int
	// SkipDays enables skipping on DaysToSkip, or on the days the feed
	// declares when DaysToSkip is empty.
	SkipDays   bool
	DaysToSkip []string

	// ReadEveryItem disables early termination on newest-first feeds.
	ReadEveryItem bool

	// Header is sent with every request.
	Header http.Header
	// ETag and LastModified seed the conditional request validators.
	ETag         string
	LastModified string

	// Transport defaults to an HTTP transport without timeout.
	Transport transport.Transport
	// Tokenizer defaults to the streaming XML tokenizer.
	Tokenizer feed.Tokenizer
	// Now defaults to time.Now.
	Now func() time.Time
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		Interval:   DefaultInterval,
		MaxHistory: DefaultMaxHistory,
	}
}

func (o Options) Validate() error {
	if o.Interval < 0 {
		return fmt.Errorf("%w: interval must be non-negative, got %v", ErrInvalidOptions, o.Interval)
	}
	if o.MaxHistory < 0 {
		return fmt.Errorf("%w: max history must be non-negative, got %d", ErrInvalidOptions, o.MaxHistory)
	}
	for _, hour := range o.HoursToSkip {
		if hour < 0 || hour > 23 {
			return fmt.Errorf("%w: hour to skip out of range: %d", ErrInvalidOptions, hour)
		}
	}
	for _, day := range o.DaysToSkip {
		if !weekdays[strings.ToLower(strings.TrimSpace(day))] {
			return fmt.Errorf("%w: unknown day to skip: %s", ErrInvalidOptions, day)
		}
	}
	return nil
}

func (o Options) withDefaults() Options {
	defaults := DefaultOptions()

	if o.Interval == 0 {
		o.Interval = defaults.Interval
	}
	if o.MaxHistory == 0 {
		o.MaxHistory = defaults.MaxHistory
	}
	if o.Transport == nil {
		o.Transport = transport.NewHTTP(transport.Options{})
	}
	if o.Tokenizer == nil {
		o.Tokenizer = feed.NewStreamTokenizer()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	days := make([]string, 0, len(o.DaysToSkip))
	for _, day := range o.DaysToSkip {
		days = append(days, strings.ToLower(strings.TrimSpace(day)))
	}
	o.DaysToSkip = days
	o.HoursToSkip = append([]int(nil), o.HoursToSkip...)
	o.History = append([]string(nil), o.History...)
	o.Header = o.Header.Clone()

	return o
}
