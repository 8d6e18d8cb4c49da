package reader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lysyi3m/feedsub/app/feed"
)

type Status int

const (
	StatusCompleted Status = iota
	StatusSkipped
	StatusNotModified
	StatusUnchanged
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusSkipped:
		return "skipped"
	case StatusNotModified:
		return "not_modified"
	case StatusUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Result describes one finished cycle.
type Result struct {
	// Items holds the new items oldest first. It is empty for skipped and
	// unchanged cycles and for a baseline cycle without EmitOnStart.
	Items  []*feed.Item
	Status Status
	// Received counts items handed over by the tokenizer, Classified those
	// checked against History.
	Received   int
	Classified int
	EarlyExit  bool
}

// Snapshot is the state a caller persists to resume a reader later.
type Snapshot struct {
	History      []string
	LastDate     string
	ETag         string
	LastModified string
	Interval     time.Duration
	Title        string
}

// Reader polls one feed and reports the items it has not seen before.
//
// Cycles started concurrently (Read while a poll is running) are not
// serialized: both consult and update the same History, and the last one
// to finish wins.
type Reader struct {
	url     string
	opts    Options
	history *History
	logger  *slog.Logger

	mu           sync.Mutex
	interval     time.Duration
	firstCycle   bool
	etag         string
	lastModified string
	lastDate     string
	title        string
	feedHours    []int
	feedDays     []string

	handlersMu sync.RWMutex
	onItem     []func(*feed.Item)
	onItems    []func([]*feed.Item)
	onError    []func(error)

	pollMu  sync.Mutex
	cancel  context.CancelFunc
	cycleMu sync.Mutex
	reset   chan time.Duration
}

func New(url string, opts Options) (*Reader, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("%w: feed URL is required", ErrInvalidOptions)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	history, err := NewHistory(opts.MaxHistory)
	if err != nil {
		return nil, err
	}
	history.Seed(opts.History)

	r := &Reader{
		url:          url,
		opts:         opts,
		history:      history,
		logger:       opts.Logger.With("url", url),
		interval:     opts.Interval,
		firstCycle:   len(opts.History) == 0,
		etag:         opts.ETag,
		lastModified: opts.LastModified,
		lastDate:     opts.LastDate,
		reset:        make(chan time.Duration, 1),
	}

	if opts.AutoStart {
		r.Start(true)
	}

	return r, nil
}

func (r *Reader) URL() string {
	return r.url
}

// OnItem registers fn to be called for every new item, oldest first.
func (r *Reader) OnItem(fn func(*feed.Item)) {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()
	r.onItem = append(r.onItem, fn)
}

// OnItems registers fn to be called once per finished cycle with all new
// items, which may be none.
func (r *Reader) OnItems(fn func([]*feed.Item)) {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()
	r.onItems = append(r.onItems, fn)
}

// OnError registers fn for errors of background polls. Errors of Read and
// Run are returned to their caller instead.
func (r *Reader) OnError(fn func(error)) {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()
	r.onError = append(r.onError, fn)
}

// Read runs one cycle and returns the new items, oldest first.
func (r *Reader) Read(ctx context.Context) ([]*feed.Item, error) {
	result, err := r.Run(ctx)
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

// Run runs one cycle, notifies the item handlers and returns the details.
func (r *Reader) Run(ctx context.Context) (*Result, error) {
	result, err := r.execute(ctx)
	if err != nil {
		return nil, err
	}

	r.notify(result.Items)
	return result, nil
}

func (r *Reader) execute(ctx context.Context) (*Result, error) {
	result, err := r.runCycle(ctx)
	if err != nil {
		r.logger.Debug("Cycle failed", "error", err)
		return nil, err
	}

	r.logger.Debug("Cycle finished",
		"status", result.Status.String(),
		"new", len(result.Items),
		"received", result.Received,
		"classified", result.Classified,
		"early_exit", result.EarlyExit)

	return result, nil
}

func (r *Reader) Interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval
}

func (r *Reader) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Snapshot{
		History:      r.history.Snapshot(),
		LastDate:     r.lastDate,
		ETag:         r.etag,
		LastModified: r.lastModified,
		Interval:     r.interval,
		Title:        r.title,
	}
}

func (r *Reader) runCycle(ctx context.Context) (*Result, error) {
	r.mu.Lock()
	first := r.firstCycle
	header := r.requestHeader()
	skip := r.shouldSkip(first)
	r.mu.Unlock()

	if skip {
		return &Result{Status: StatusSkipped, Items: []*feed.Item{}}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resp, err := r.opts.Transport.Open(ctx, r.url, header)
	if err != nil {
		return nil, &TransportError{URL: r.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &Result{Status: StatusNotModified, Items: []*feed.Item{}}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{URL: r.url, StatusCode: resp.StatusCode}
	}

	c := newCycle(r.history, first, r.opts.ReadEveryItem)
	c.gate = func(meta map[string][]string) Status {
		return r.gate(meta, first)
	}

	body := &bodyReader{r: resp.Body}
	err = r.opts.Tokenizer.Run(body, c)

	if err != nil || c.stopped || c.status != StatusCompleted {
		// Nothing more is needed from the response.
		cancel()
		resp.Body.Close()
	}

	if err != nil {
		if body.err != nil {
			return nil, &TransportError{URL: r.url, Err: body.err}
		}
		return nil, &ParseError{URL: r.url, Err: err}
	}

	items, fingerprints, _ := c.finalize()

	r.mu.Lock()
	r.learn(c.meta)
	if c.status == StatusCompleted || c.status == StatusUnchanged {
		r.commitValidators(resp.Header)
	}
	if c.status == StatusCompleted {
		r.history.Add(fingerprints)
		r.firstCycle = false
		if date := feedDate(c.meta); date != "" {
			r.lastDate = date
		}
	}
	r.mu.Unlock()

	result := &Result{
		Items:      []*feed.Item{},
		Status:     c.status,
		Received:   c.received,
		Classified: c.classified,
		EarlyExit:  c.stopped,
	}
	if c.status == StatusCompleted && (!first || r.opts.EmitOnStart) {
		result.Items = items
	}

	return result, nil
}

// gate runs when the first item arrives, once feed-level fields declared
// ahead of the items are known.
func (r *Reader) gate(meta map[string][]string, first bool) Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.learnSkipLists(meta)

	if r.shouldSkip(first) {
		return StatusSkipped
	}
	if date := feedDate(meta); date != "" && date == r.lastDate {
		return StatusUnchanged
	}
	return StatusCompleted
}

// shouldSkip must be called with mu held.
func (r *Reader) shouldSkip(first bool) bool {
	if first && r.opts.EmitOnStart {
		return false
	}

	policy := SkipPolicy{
		SkipHours: r.opts.SkipHours,
		Hours:     r.opts.HoursToSkip,
		SkipDays:  r.opts.SkipDays,
		Days:      r.opts.DaysToSkip,
	}
	if len(policy.Hours) == 0 {
		policy.Hours = r.feedHours
	}
	if len(policy.Days) == 0 {
		policy.Days = r.feedDays
	}

	return policy.ShouldSkip(r.opts.Now())
}

// requestHeader must be called with mu held.
func (r *Reader) requestHeader() http.Header {
	header := r.opts.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if r.etag != "" {
		header.Set("If-None-Match", r.etag)
	}
	if r.lastModified != "" {
		header.Set("If-Modified-Since", r.lastModified)
	}
	return header
}

// commitValidators must be called with mu held.
func (r *Reader) commitValidators(header http.Header) {
	if etag := header.Get("ETag"); etag != "" {
		r.etag = etag
	}
	if lastModified := header.Get("Last-Modified"); lastModified != "" {
		r.lastModified = lastModified
	}
}

// learn must be called with mu held.
func (r *Reader) learn(meta map[string][]string) {
	r.learnSkipLists(meta)

	if title := firstValue(meta[feed.MetaTitle]); title != "" {
		r.title = title
	}

	ttl, err := strconv.Atoi(firstValue(meta[feed.MetaTTL]))
	if err != nil || ttl <= 0 || r.opts.ForceInterval {
		return
	}
	if interval := time.Duration(ttl) * time.Minute; interval > r.interval {
		r.logger.Debug("Interval raised by feed ttl", "from", r.interval, "to", interval)
		r.interval = interval
		r.rearm(interval)
	}
}

// learnSkipLists must be called with mu held. Lists declared by the feed
// are kept for later cycles.
func (r *Reader) learnSkipLists(meta map[string][]string) {
	if values, ok := meta[feed.MetaSkipHours]; ok {
		hours := make([]int, 0, len(values))
		for _, value := range values {
			if hour, err := strconv.Atoi(value); err == nil && hour >= 0 && hour <= 23 {
				hours = append(hours, hour)
			}
		}
		r.feedHours = hours
	}

	if values, ok := meta[feed.MetaSkipDays]; ok {
		days := make([]string, 0, len(values))
		for _, value := range values {
			days = append(days, strings.ToLower(value))
		}
		r.feedDays = days
	}
}

func (r *Reader) notify(items []*feed.Item) {
	r.handlersMu.RLock()
	onItem := slices.Clone(r.onItem)
	onItems := slices.Clone(r.onItems)
	r.handlersMu.RUnlock()

	for _, item := range items {
		for _, fn := range onItem {
			fn(item)
		}
	}
	for _, fn := range onItems {
		fn(items)
	}
}

func (r *Reader) emitError(err error) {
	r.handlersMu.RLock()
	onError := slices.Clone(r.onError)
	r.handlersMu.RUnlock()

	if len(onError) == 0 {
		r.logger.Warn("Poll failed", "error", err)
		return
	}
	for _, fn := range onError {
		fn(err)
	}
}

// feedDate is the feed-level date used to recognise an unchanged document.
func feedDate(meta map[string][]string) string {
	for _, name := range []string{feed.MetaPubDate, feed.MetaLastBuildDate, feed.MetaUpdated} {
		if value := firstValue(meta[name]); value != "" {
			return value
		}
	}
	return ""
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// bodyReader remembers the first read failure so that a broken connection
// is not mistaken for broken markup.
type bodyReader struct {
	r   io.Reader
	err error
}

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err != nil && err != io.EOF && b.err == nil {
		b.err = err
	}
	return n, err
}
