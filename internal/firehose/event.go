// Package firehose applies remote record events to local state. Every
// event ends in an Outcome; processing never fails.
package firehose

import (
	"encoding/json"
	"strings"

	"github.com/cosmik-network/cardsync/internal/domain"
)

// EventType is the record operation carried by an event.
type EventType string

const (
	EventCreate EventType = "create"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Valid reports whether t is one of the known operations.
func (t EventType) Valid() bool {
	switch t {
	case EventCreate, EventUpdate, EventDelete:
		return true
	default:
		return false
	}
}

// Event is one record operation from the network. CID is nil for deletes.
type Event struct {
	AtURI     string          `json:"atUri"`
	CID       *string         `json:"cid"`
	EventType EventType       `json:"eventType"`
	Record    json.RawMessage `json:"record,omitempty"`

	// Cursor is the source position of the event, zero for pushed events.
	Cursor int64 `json:"-"`
}

// PublishedRecordID returns the record id the event describes. It is only
// available when the event carries a CID.
func (e Event) PublishedRecordID() (domain.PublishedRecordID, bool) {
	if e.CID == nil {
		return domain.PublishedRecordID{}, false
	}
	rid, err := domain.NewPublishedRecordID(e.AtURI, *e.CID)
	if err != nil {
		return domain.PublishedRecordID{}, false
	}
	return rid, true
}

// Curator is the DID whose repository holds the record.
func (e Event) Curator() domain.CuratorID {
	return domain.AuthorityOf(e.AtURI)
}

// NSID is the record collection of the event's URI.
func (e Event) NSID() string {
	return domain.RecordNSIDOf(e.AtURI)
}

// StrongRef points at a specific version of a record.
type StrongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// CardRecord is the network.cosmik.card record body.
type CardRecord struct {
	Type       string            `json:"type"`
	Content    CardRecordContent `json:"content"`
	ParentCard *StrongRef        `json:"parentCard,omitempty"`
	URL        string            `json:"url,omitempty"`
	CreatedAt  string            `json:"createdAt,omitempty"`
}

// CardRecordContent is the union of URL and note content fields.
type CardRecordContent struct {
	URL      string              `json:"url,omitempty"`
	Metadata *domain.URLMetadata `json:"metadata,omitempty"`
	Text     string              `json:"text,omitempty"`
	Title    string              `json:"title,omitempty"`
}

// TargetURL returns the URL a card record points at.
func (r CardRecord) TargetURL() string {
	if u := strings.TrimSpace(r.Content.URL); u != "" {
		return u
	}
	return strings.TrimSpace(r.URL)
}

// CollectionLinkRecord is the network.cosmik.collectionLink record body.
type CollectionLinkRecord struct {
	Collection StrongRef `json:"collection"`
	Card       StrongRef `json:"card"`
	AddedBy    string    `json:"addedBy,omitempty"`
	AddedAt    string    `json:"addedAt,omitempty"`
}

// CollectionRecord is the network.cosmik.collection record body.
type CollectionRecord struct {
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	AccessType    string   `json:"accessType,omitempty"`
	Collaborators []string `json:"collaborators,omitempty"`
	CreatedAt     string   `json:"createdAt,omitempty"`
}

// Outcome reports what happened to an event.
type Outcome struct {
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

func applied() Outcome { return Outcome{Applied: true} }

func skipped(reason string) Outcome { return Outcome{Reason: reason} }

func decode(raw json.RawMessage, v any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}
