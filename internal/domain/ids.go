package domain

import (
	"strings"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/google/uuid"
)

// CardID identifies a Card. It is a UUID string.
type CardID string

// CollectionID identifies a Collection. It is a UUID string.
type CollectionID string

// CuratorID identifies a curator by DID (e.g. did:plc:abc123).
type CuratorID string

func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// NewCardID generates a fresh CardID.
func NewCardID() CardID { return CardID(newUUID()) }

// NewCollectionID generates a fresh CollectionID.
func NewCollectionID() CollectionID { return CollectionID(newUUID()) }

// ParseCardID validates s as a card identifier.
func ParseCardID(s string) (CardID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", Validation("ParseCardID", "invalid card id: "+s)
	}
	return CardID(id.String()), nil
}

// ParseCollectionID validates s as a collection identifier.
func ParseCollectionID(s string) (CollectionID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", Validation("ParseCollectionID", "invalid collection id: "+s)
	}
	return CollectionID(id.String()), nil
}

// ParseCuratorID validates s as a DID.
func ParseCuratorID(s string) (CuratorID, error) {
	did, err := syntax.ParseDID(strings.TrimSpace(s))
	if err != nil {
		return "", Validation("ParseCuratorID", "invalid curator did: "+s)
	}
	return CuratorID(did.String()), nil
}

func (id CardID) String() string       { return string(id) }
func (id CollectionID) String() string { return string(id) }
func (id CuratorID) String() string    { return string(id) }

// PublishedRecordID is the local stand-in for a record written to a
// curator's repository. URI is the join key used by resolution.
type PublishedRecordID struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// NewPublishedRecordID validates uri as an AT-URI and requires a CID.
func NewPublishedRecordID(uri, cid string) (PublishedRecordID, error) {
	uri = strings.TrimSpace(uri)
	cid = strings.TrimSpace(cid)
	if _, err := syntax.ParseATURI(uri); err != nil {
		return PublishedRecordID{}, Validation("NewPublishedRecordID", "invalid at-uri: "+uri)
	}
	if cid == "" {
		return PublishedRecordID{}, Validation("NewPublishedRecordID", "cid must not be empty")
	}
	return PublishedRecordID{URI: uri, CID: cid}, nil
}

// Equal reports whether both the URI and the CID match.
func (p PublishedRecordID) Equal(other PublishedRecordID) bool {
	return p.URI == other.URI && p.CID == other.CID
}

// Authority returns the DID that owns the record, or "" when the URI
// authority is a handle or cannot be parsed.
func (p PublishedRecordID) Authority() CuratorID {
	return AuthorityOf(p.URI)
}

// AuthorityOf extracts the DID authority of an AT-URI.
func AuthorityOf(uri string) CuratorID {
	aturi, err := syntax.ParseATURI(uri)
	if err != nil {
		return ""
	}
	did, err := aturi.Authority().AsDID()
	if err != nil {
		return ""
	}
	return CuratorID(did.String())
}

// RecordNSIDOf returns the record collection namespace of an AT-URI.
func RecordNSIDOf(uri string) string {
	aturi, err := syntax.ParseATURI(uri)
	if err != nil {
		return ""
	}
	return aturi.Collection().String()
}

func clonePublishedRecordID(p *PublishedRecordID) *PublishedRecordID {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// Record namespaces published for cards, collections and card links.
const (
	CardNSID           = "network.cosmik.card"
	CollectionNSID     = "network.cosmik.collection"
	CollectionLinkNSID = "network.cosmik.collectionLink"
)
