package feed

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want string
	}{
		{
			name: "strips markup",
			item: Item{Description: `<p>Hello <b>world</b><script>alert(1)</script></p>`},
			want: "Hello world",
		},
		{
			name: "falls back to content",
			item: Item{Content: "<div>Body &amp; soul</div>"},
			want: "Body & soul",
		},
		{
			name: "collapses whitespace",
			item: Item{Description: "one\n\n  two\tthree"},
			want: "one two three",
		},
		{
			name: "empty",
			item: Item{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summarize(&tt.item); got != tt.want {
				t.Errorf("Summarize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSummarizeTruncates(t *testing.T) {
	item := &Item{Description: strings.Repeat("é", summaryLength+50)}
	got := Summarize(item)

	if utf8.RuneCountInString(got) != summaryLength+1 {
		t.Errorf("Expected %d runes, got %d", summaryLength+1, utf8.RuneCountInString(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("Expected ellipsis suffix, got %q", got[len(got)-10:])
	}
}
