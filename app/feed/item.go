package feed

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Epoch is the date given to items that carry no parseable date.
var Epoch = time.Unix(0, 0).UTC()

// Item is a single entry as produced by a Tokenizer. Date fields are kept
// verbatim since they take part in the item's identity.
type Item struct {
	Title       string
	Link        string
	Description string
	Content     string
	GUID        string
	Author      string
	Categories  []string

	PubDate   string
	Published string
	Updated   string
}

// Fingerprint identifies an item by title, link and its three raw date
// fields. Absent fields count as empty strings.
func (i *Item) Fingerprint() string {
	h := sha256.New()
	for idx, field := range []string{i.Title, i.Link, i.PubDate, i.Published, i.Updated} {
		if idx > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Date is the publication date used to discover feed order.
func (i *Item) Date() time.Time {
	return ParseDate(cmp.Or(i.PubDate, i.Published))
}

// ParseDate parses the many date layouts found in feeds. Empty or
// unparseable values yield Epoch.
func ParseDate(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return Epoch
	}

	t, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return Epoch
	}
	return t.UTC()
}
