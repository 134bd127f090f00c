package domain

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// CardType tags the kind of content a Card holds.
type CardType string

const (
	CardTypeURL       CardType = "URL"
	CardTypeNote      CardType = "NOTE"
	CardTypeHighlight CardType = "HIGHLIGHT"
)

const (
	MaxNoteTextLength  = 10000
	MaxNoteTitleLength = 500
)

// ParseCardType accepts the canonical upper-case tags (case-insensitive).
func ParseCardType(s string) (CardType, error) {
	switch CardType(strings.ToUpper(strings.TrimSpace(s))) {
	case CardTypeURL:
		return CardTypeURL, nil
	case CardTypeNote:
		return CardTypeNote, nil
	case CardTypeHighlight:
		return CardTypeHighlight, nil
	default:
		return "", Validation("ParseCardType", "unknown card type: "+s)
	}
}

// URL is a validated absolute http(s) URL.
type URL string

// ParseURL validates raw as an absolute http(s) URL with a host.
func ParseURL(raw string) (URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", Validation("ParseURL", "url must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", Validation("ParseURL", "invalid url: "+raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", Validation("ParseURL", "url must use http or https: "+raw)
	}
	if u.Hostname() == "" {
		return "", Validation("ParseURL", "url must have a host: "+raw)
	}
	return URL(u.String()), nil
}

func (u URL) String() string { return string(u) }

// URLMetadata is whatever was fetched about a URL when the card was saved.
type URLMetadata struct {
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Author      string     `json:"author,omitempty"`
	SiteName    string     `json:"siteName,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	Type        string     `json:"type,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	RetrievedAt *time.Time `json:"retrievedAt,omitempty"`
}

// CardContent is the closed set of content variants a Card can hold.
// Only URLContent, NoteContent and HighlightContent implement it.
type CardContent interface {
	Type() CardType
	isCardContent()
}

// URLContent holds a bookmarked URL and optional metadata.
type URLContent struct {
	URL      URL
	Metadata *URLMetadata
}

func (URLContent) Type() CardType { return CardTypeURL }
func (URLContent) isCardContent() {}

// NewURLContent builds URL content from a raw string.
func NewURLContent(raw string, metadata *URLMetadata) (URLContent, error) {
	u, err := ParseURL(raw)
	if err != nil {
		return URLContent{}, err
	}
	return URLContent{URL: u, Metadata: cloneMetadata(metadata)}, nil
}

// NoteContent holds free text written by a curator.
type NoteContent struct {
	Text  string
	Title string
}

func (NoteContent) Type() CardType { return CardTypeNote }
func (NoteContent) isCardContent() {}

// NewNoteContent trims and length-checks note text and title.
func NewNoteContent(text, title string) (NoteContent, error) {
	text = strings.TrimSpace(text)
	title = strings.TrimSpace(title)
	if text == "" {
		return NoteContent{}, Validation("NewNoteContent", "note text must not be empty")
	}
	if utf8.RuneCountInString(text) > MaxNoteTextLength {
		return NoteContent{}, Validation("NewNoteContent", "note text is too long")
	}
	if utf8.RuneCountInString(title) > MaxNoteTitleLength {
		return NoteContent{}, Validation("NewNoteContent", "note title is too long")
	}
	return NoteContent{Text: text, Title: title}, nil
}

// HighlightContent holds a passage quoted from a parent card.
type HighlightContent struct {
	Text string
	Note string
}

func (HighlightContent) Type() CardType { return CardTypeHighlight }
func (HighlightContent) isCardContent() {}

// NewHighlightContent validates the quoted passage.
func NewHighlightContent(text, note string) (HighlightContent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return HighlightContent{}, Validation("NewHighlightContent", "highlight text must not be empty")
	}
	if utf8.RuneCountInString(text) > MaxNoteTextLength {
		return HighlightContent{}, Validation("NewHighlightContent", "highlight text is too long")
	}
	return HighlightContent{Text: text, Note: strings.TrimSpace(note)}, nil
}

func cloneMetadata(m *URLMetadata) *URLMetadata {
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}

func cloneContent(c CardContent) CardContent {
	if u, ok := c.(URLContent); ok {
		u.Metadata = cloneMetadata(u.Metadata)
		return u
	}
	return c
}
