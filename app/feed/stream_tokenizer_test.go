package feed

import (
	"errors"
	"strings"
	"testing"
)

// recordingSink keeps the first value of every meta field and every item.
// When limit is set it asks the tokenizer to stop after that many items.
type recordingSink struct {
	meta  map[string][]string
	items []*Item
	limit int
}

func (s *recordingSink) Meta(name string, values ...string) {
	if s.meta == nil {
		s.meta = make(map[string][]string)
	}
	if _, ok := s.meta[name]; !ok {
		s.meta[name] = values
	}
}

func (s *recordingSink) Item(item *Item) bool {
	s.items = append(s.items, item)
	return s.limit == 0 || len(s.items) < s.limit
}

func (s *recordingSink) metaValue(name string) string {
	return strings.Join(s.meta[name], ",")
}

const testRSS = `<?xml version="1.0"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <pubDate>Mon, 03 Jul 2023 12:00:00 GMT</pubDate>
    <lastBuildDate>Mon, 03 Jul 2023 12:30:00 GMT</lastBuildDate>
    <ttl>60</ttl>
    <skipHours><hour>1</hour><hour> 2 </hour></skipHours>
    <skipDays><day>Saturday</day><day>Sunday</day></skipDays>
    <image>
      <url>https://example.com/icon.png</url>
      <title>Image Title</title>
      <link>https://example.com</link>
    </image>
    <item>
      <title>Test Item 2</title>
      <link>https://example.com/item2</link>
      <description>Test Item 2 Description</description>
      <content:encoded><![CDATA[<p>Full text</p>]]></content:encoded>
      <guid>item-2</guid>
      <pubDate>Mon, 03 Jul 2023 11:00:00 GMT</pubDate>
      <author>test@example.com (Test Author)</author>
      <category>Technology</category>
      <category>Programming</category>
    </item>
    <item>
      <title>Test Item 1</title>
      <link>https://example.com/item1</link>
      <guid>item-1</guid>
      <dc:date>2023-07-03T10:00:00Z</dc:date>
      <dc:creator>Jane</dc:creator>
    </item>
  </channel>
</rss>`

func TestStreamTokenizerRSS(t *testing.T) {
	sink := &recordingSink{}
	if err := NewStreamTokenizer().Run(strings.NewReader(testRSS), sink); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if got := sink.metaValue(MetaTitle); got != "Test Feed" {
		t.Errorf("Expected title 'Test Feed', got: %s", got)
	}
	if got := sink.metaValue(MetaPubDate); got != "Mon, 03 Jul 2023 12:00:00 GMT" {
		t.Errorf("Expected channel pubDate, got: %s", got)
	}
	if got := sink.metaValue(MetaLastBuildDate); got != "Mon, 03 Jul 2023 12:30:00 GMT" {
		t.Errorf("Expected lastBuildDate, got: %s", got)
	}
	if got := sink.metaValue(MetaTTL); got != "60" {
		t.Errorf("Expected ttl 60, got: %s", got)
	}
	if got := sink.metaValue(MetaSkipHours); got != "1,2" {
		t.Errorf("Expected skip hours '1,2', got: %s", got)
	}
	if got := sink.metaValue(MetaSkipDays); got != "Saturday,Sunday" {
		t.Errorf("Expected skip days 'Saturday,Sunday', got: %s", got)
	}

	if len(sink.items) != 2 {
		t.Fatalf("Expected 2 items, got: %d", len(sink.items))
	}

	first := sink.items[0]
	if first.Title != "Test Item 2" {
		t.Errorf("Expected title 'Test Item 2', got: %s", first.Title)
	}
	if first.Link != "https://example.com/item2" {
		t.Errorf("Expected link 'https://example.com/item2', got: %s", first.Link)
	}
	if first.Description != "Test Item 2 Description" {
		t.Errorf("Expected description, got: %s", first.Description)
	}
	if first.Content != "<p>Full text</p>" {
		t.Errorf("Expected content:encoded body, got: %s", first.Content)
	}
	if first.GUID != "item-2" {
		t.Errorf("Expected GUID 'item-2', got: %s", first.GUID)
	}
	if first.PubDate != "Mon, 03 Jul 2023 11:00:00 GMT" {
		t.Errorf("Expected raw pubDate, got: %s", first.PubDate)
	}
	if first.Author != "test@example.com (Test Author)" {
		t.Errorf("Expected author, got: %s", first.Author)
	}
	if strings.Join(first.Categories, ",") != "Technology,Programming" {
		t.Errorf("Expected 2 categories, got: %v", first.Categories)
	}

	second := sink.items[1]
	if second.PubDate != "2023-07-03T10:00:00Z" {
		t.Errorf("Expected dc:date as pubdate, got: %s", second.PubDate)
	}
	if second.Author != "Jane" {
		t.Errorf("Expected dc:creator as author, got: %s", second.Author)
	}
}

func TestStreamTokenizerAtom(t *testing.T) {
	atomData := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <updated>2024-01-02T00:00:00Z</updated>
  <author><name>Feed Author</name></author>
  <entry>
    <title>Entry One</title>
    <link rel="self" href="https://example.com/self/1"/>
    <link rel="alternate" href="https://example.com/1"/>
    <id>urn:uuid:1</id>
    <published>2024-01-01T10:00:00Z</published>
    <updated>2024-01-01T12:00:00Z</updated>
    <summary>Short</summary>
    <content type="html">&lt;p&gt;Long&lt;/p&gt;</content>
    <author><name>Jane</name><email>jane@example.com</email></author>
    <category term="go"/>
  </entry>
</feed>`

	sink := &recordingSink{}
	if err := NewStreamTokenizer().Run(strings.NewReader(atomData), sink); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if got := sink.metaValue(MetaTitle); got != "Atom Feed" {
		t.Errorf("Expected title 'Atom Feed', got: %s", got)
	}
	if got := sink.metaValue(MetaUpdated); got != "2024-01-02T00:00:00Z" {
		t.Errorf("Expected feed updated, got: %s", got)
	}
	if len(sink.items) != 1 {
		t.Fatalf("Expected 1 item, got: %d", len(sink.items))
	}

	entry := sink.items[0]
	if entry.Link != "https://example.com/1" {
		t.Errorf("Expected alternate link, got: %s", entry.Link)
	}
	if entry.GUID != "urn:uuid:1" {
		t.Errorf("Expected id as GUID, got: %s", entry.GUID)
	}
	if entry.Published != "2024-01-01T10:00:00Z" || entry.Updated != "2024-01-01T12:00:00Z" {
		t.Errorf("Expected published/updated, got: %s / %s", entry.Published, entry.Updated)
	}
	if entry.PubDate != "" {
		t.Errorf("Expected empty pubdate for Atom entry, got: %s", entry.PubDate)
	}
	if entry.Description != "Short" || entry.Content != "<p>Long</p>" {
		t.Errorf("Expected summary and content, got: %q / %q", entry.Description, entry.Content)
	}
	if entry.Author != "jane@example.com (Jane)" {
		t.Errorf("Expected formatted author, got: %s", entry.Author)
	}
	if len(entry.Categories) != 1 || entry.Categories[0] != "go" {
		t.Errorf("Expected category term 'go', got: %v", entry.Categories)
	}
}

func TestStreamTokenizerRDF(t *testing.T) {
	rdfData := `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns="http://purl.org/rss/1.0/" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel rdf:about="https://example.com">
    <title>RDF Feed</title>
  </channel>
  <item rdf:about="https://example.com/a">
    <title>A</title>
    <link>https://example.com/a</link>
    <dc:date>2024-02-01T00:00:00Z</dc:date>
  </item>
</rdf:RDF>`

	sink := &recordingSink{}
	if err := NewStreamTokenizer().Run(strings.NewReader(rdfData), sink); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got := sink.metaValue(MetaTitle); got != "RDF Feed" {
		t.Errorf("Expected title 'RDF Feed', got: %s", got)
	}
	if len(sink.items) != 1 || sink.items[0].PubDate != "2024-02-01T00:00:00Z" {
		t.Errorf("Expected one item dated by dc:date, got: %+v", sink.items)
	}
}

func TestStreamTokenizerStopsWhenSinkDeclines(t *testing.T) {
	// Anything after the first item is never tokenized.
	data := `<rss><channel>
<item><title>a</title></item>
<item><title>b</title></item>
<item><title>c</title>`

	sink := &recordingSink{limit: 1}
	if err := NewStreamTokenizer().Run(strings.NewReader(data), sink); err != nil {
		t.Fatalf("Expected no error after early stop, got: %v", err)
	}
	if len(sink.items) != 1 {
		t.Errorf("Expected 1 item, got: %d", len(sink.items))
	}
}

func TestStreamTokenizerMalformed(t *testing.T) {
	data := `<rss><channel><item><title>a</title></item><item><title>broken`

	sink := &recordingSink{}
	err := NewStreamTokenizer().Run(strings.NewReader(data), sink)
	if err == nil {
		t.Fatal("Expected error for truncated document")
	}
	if len(sink.items) != 1 {
		t.Errorf("Expected the complete item before the error, got: %d", len(sink.items))
	}
}

func TestStreamTokenizerUnknownFormat(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "html", data: `<html><body><p>hi</p></body></html>`},
		{name: "plain text", data: `this is not a feed`},
		{name: "empty", data: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewStreamTokenizer().Run(strings.NewReader(tt.data), &recordingSink{})
			if !errors.Is(err, ErrUnknownFormat) {
				t.Errorf("Expected ErrUnknownFormat, got: %v", err)
			}
		})
	}
}

func TestStreamTokenizerCharset(t *testing.T) {
	data := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
		"<rss><channel><item><title>Caf\xe9</title></item></channel></rss>"

	sink := &recordingSink{}
	if err := NewStreamTokenizer().Run(strings.NewReader(data), sink); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(sink.items) != 1 || sink.items[0].Title != "Café" {
		t.Errorf("Expected decoded title 'Café', got: %+v", sink.items)
	}
}

func TestNewTokenizer(t *testing.T) {
	if tok, err := NewTokenizer(""); err != nil {
		t.Errorf("Expected default tokenizer, got error: %v", err)
	} else if _, ok := tok.(*StreamTokenizer); !ok {
		t.Errorf("Expected *StreamTokenizer by default, got %T", tok)
	}

	if tok, err := NewTokenizer(ParserBuffered); err != nil {
		t.Errorf("Expected buffered tokenizer, got error: %v", err)
	} else if _, ok := tok.(*BufferedTokenizer); !ok {
		t.Errorf("Expected *BufferedTokenizer, got %T", tok)
	}

	if _, err := NewTokenizer("dom"); err == nil {
		t.Error("Expected error for unknown parser")
	}
}
