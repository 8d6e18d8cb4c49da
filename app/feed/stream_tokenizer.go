package feed

import (
	"cmp"
	"fmt"
	"io"
	"strings"

	xpp "github.com/mmcdole/goxpp"
)

// StreamTokenizer pull-parses RSS 0.9x/2.0, RSS 1.0 and Atom documents,
// decoding one entry at a time so that a Sink can stop the read early.
type StreamTokenizer struct{}

func NewStreamTokenizer() *StreamTokenizer {
	return &StreamTokenizer{}
}

var _ Tokenizer = (*StreamTokenizer)(nil)

var rootElements = map[string]bool{
	"rss":  true,
	"rdf":  true,
	"feed": true,
}

func (t *StreamTokenizer) Run(r io.Reader, sink Sink) error {
	p := xpp.NewXMLPullParser(r, false, charsetReader)

	// Open elements outside of entries, lower-cased.
	var stack []string
	rooted := false

	for {
		event, err := p.Next()
		if err != nil {
			return fmt.Errorf("failed to parse feed: %w", err)
		}

		switch event {
		case xpp.EndDocument:
			if !rooted {
				return ErrUnknownFormat
			}
			return nil

		case xpp.EndTag:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}

		case xpp.StartTag:
			name := strings.ToLower(p.Name)

			if !rooted {
				if !rootElements[name] {
					return fmt.Errorf("%w: <%s>", ErrUnknownFormat, p.Name)
				}
				rooted = true
				stack = append(stack, name)
				continue
			}

			parent := ""
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}

			consumed, more, err := t.handleElement(p, name, parent, sink)
			if err != nil {
				return fmt.Errorf("failed to parse <%s>: %w", p.Name, err)
			}
			if !more {
				return nil
			}
			if !consumed {
				stack = append(stack, name)
			}
		}
	}
}

// handleElement decodes the elements reported to the sink. Elements it does
// not consume are descended into by the caller. more is false once the sink
// has asked to stop.
func (t *StreamTokenizer) handleElement(p *xpp.XMLPullParser, name, parent string, sink Sink) (consumed, more bool, err error) {
	switch name {
	case "item", "entry":
		var raw rawItem
		if err := p.DecodeElement(&raw); err != nil {
			return false, false, err
		}
		return true, sink.Item(raw.item()), nil

	case "title":
		if parent != "channel" && parent != "feed" {
			return false, true, nil
		}
		return t.decodeMeta(p, sink, MetaTitle)

	case "ttl":
		return t.decodeMeta(p, sink, MetaTTL)

	case "pubdate":
		return t.decodeMeta(p, sink, MetaPubDate)

	case "lastbuilddate":
		return t.decodeMeta(p, sink, MetaLastBuildDate)

	case "updated":
		return t.decodeMeta(p, sink, MetaUpdated)

	case "skiphours":
		var hours struct {
			Values []string `xml:"hour"`
		}
		if err := p.DecodeElement(&hours); err != nil {
			return false, false, err
		}
		sink.Meta(MetaSkipHours, trimAll(hours.Values)...)
		return true, true, nil

	case "skipdays":
		var days struct {
			Values []string `xml:"day"`
		}
		if err := p.DecodeElement(&days); err != nil {
			return false, false, err
		}
		sink.Meta(MetaSkipDays, trimAll(days.Values)...)
		return true, true, nil
	}

	return false, true, nil
}

func (t *StreamTokenizer) decodeMeta(p *xpp.XMLPullParser, sink Sink, field string) (consumed, more bool, err error) {
	var value string
	if err := p.DecodeElement(&value); err != nil {
		return false, false, err
	}
	sink.Meta(field, strings.TrimSpace(value))
	return true, true, nil
}

type rawLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Value string `xml:",chardata"`
}

type rawPerson struct {
	Name  string `xml:"name"`
	Email string `xml:"email"`
	Value string `xml:",chardata"`
}

type rawCategory struct {
	Term  string `xml:"term,attr"`
	Value string `xml:",chardata"`
}

// rawItem matches RSS and Atom entries by local name, so namespaced
// extensions such as dc:date and content:encoded land here as well.
type rawItem struct {
	Titles       []string      `xml:"title"`
	Links        []rawLink     `xml:"link"`
	Descriptions []string      `xml:"description"`
	Summaries    []string      `xml:"summary"`
	Encoded      []string      `xml:"encoded"`
	Contents     []string      `xml:"content"`
	GUIDs        []string      `xml:"guid"`
	IDs          []string      `xml:"id"`
	PubDates     []string      `xml:"pubDate"`
	Dates        []string      `xml:"date"`
	Published    []string      `xml:"published"`
	Issued       []string      `xml:"issued"`
	Updated      []string      `xml:"updated"`
	Modified     []string      `xml:"modified"`
	Authors      []rawPerson   `xml:"author"`
	Creators     []string      `xml:"creator"`
	Categories   []rawCategory `xml:"category"`
}

func (ri *rawItem) item() *Item {
	item := &Item{
		Title:       firstText(ri.Titles),
		Link:        ri.link(),
		Description: firstText(ri.Descriptions, ri.Summaries),
		Content:     firstText(ri.Encoded, ri.Contents),
		GUID:        firstText(ri.GUIDs, ri.IDs),
		Author:      ri.author(),
		PubDate:     firstText(ri.PubDates, ri.Dates),
		Published:   firstText(ri.Published, ri.Issued),
		Updated:     firstText(ri.Updated, ri.Modified),
	}

	for _, category := range ri.Categories {
		if value := cmp.Or(strings.TrimSpace(category.Value), strings.TrimSpace(category.Term)); value != "" {
			item.Categories = append(item.Categories, value)
		}
	}

	return item
}

func (ri *rawItem) link() string {
	for _, l := range ri.Links {
		if value := strings.TrimSpace(l.Value); value != "" {
			return value
		}
	}
	for _, l := range ri.Links {
		if l.Href != "" && (l.Rel == "" || l.Rel == "alternate") {
			return strings.TrimSpace(l.Href)
		}
	}
	for _, l := range ri.Links {
		if l.Href != "" {
			return strings.TrimSpace(l.Href)
		}
	}
	return ""
}

func (ri *rawItem) author() string {
	for _, a := range ri.Authors {
		name := strings.TrimSpace(a.Name)
		email := strings.TrimSpace(a.Email)
		if author := formatAuthor(cmp.Or(name, strings.TrimSpace(a.Value)), email); author != "" {
			return author
		}
	}
	return firstText(ri.Creators)
}

func formatAuthor(name, email string) string {
	switch {
	case name != "" && email != "":
		return fmt.Sprintf("%s (%s)", email, name)
	case name != "":
		return name
	default:
		return email
	}
}

// firstText returns the first non-blank value across the given lists.
func firstText(lists ...[]string) string {
	for _, list := range lists {
		for _, value := range list {
			if value = strings.TrimSpace(value); value != "" {
				return value
			}
		}
	}
	return ""
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
