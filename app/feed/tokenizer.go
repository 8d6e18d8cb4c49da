package feed

import (
	"errors"
	"io"
)

// Feed-level fields reported through Sink.Meta.
const (
	MetaTitle         = "title"
	MetaTTL           = "ttl"
	MetaPubDate       = "pubdate"
	MetaLastBuildDate = "lastbuilddate"
	MetaUpdated       = "updated"
	MetaSkipHours     = "skiphours"
	MetaSkipDays      = "skipdays"
)

var ErrUnknownFormat = errors.New("unrecognised feed format")

// Sink receives tokenizer events in document order.
type Sink interface {
	// Meta reports a feed-level field. A field may be reported more than
	// once; receivers keep the first value.
	Meta(name string, values ...string)

	// Item reports one entry. Returning false stops the tokenizer, which
	// then returns nil without reading further.
	Item(item *Item) bool
}

// Tokenizer turns a feed document into Sink events. Run returns a non-nil
// error only for malformed or unreadable input.
type Tokenizer interface {
	Run(r io.Reader, sink Sink) error
}

// NewTokenizer returns the tokenizer registered under name ("stream" or
// "buffered").
func NewTokenizer(name string) (Tokenizer, error) {
	switch name {
	case "", ParserStream:
		return NewStreamTokenizer(), nil
	case ParserBuffered:
		return NewBufferedTokenizer(), nil
	default:
		return nil, errors.New("unknown parser: " + name)
	}
}
