package domain

import (
	"time"
)

// LibraryMembership records that a curator holds a card in their library.
// PublishedRecordID is nil until the membership has been written to the
// curator's repository.
type LibraryMembership struct {
	CuratorID         CuratorID          `json:"curatorId"`
	AddedAt           time.Time          `json:"addedAt"`
	PublishedRecordID *PublishedRecordID `json:"publishedRecordId,omitempty"`
}

// Card is a unit of curated content. It owns its library memberships and
// its publication state; parent cards are referenced by id only.
type Card struct {
	id                CardID
	curatorID         CuratorID
	cardType          CardType
	content           CardContent
	url               *URL
	parentCardID      *CardID
	memberships       []LibraryMembership
	libraryCount      int
	publishedRecordID *PublishedRecordID
	createdAt         time.Time
	updatedAt         time.Time
	events            []DomainEvent
}

// CardParams carries the inputs of NewCard. ID and CreatedAt are generated
// when left empty.
type CardParams struct {
	ID                CardID
	CuratorID         CuratorID
	Content           CardContent
	ParentCardID      *CardID
	URL               *URL
	PublishedRecordID *PublishedRecordID
	CreatedAt         time.Time
}

// NewCard validates type, content and parent consistency and returns a
// card with no library memberships.
func NewCard(p CardParams) (*Card, error) {
	const op = "NewCard"
	if p.CuratorID == "" {
		return nil, Validation(op, "curator id is required")
	}
	if p.Content == nil {
		return nil, Validation(op, "content is required")
	}
	id := p.ID
	if id == "" {
		id = NewCardID()
	}
	cardURL, err := checkCardShape(op, p.Content, p.ParentCardID, p.URL)
	if err != nil {
		return nil, err
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return &Card{
		id:                id,
		curatorID:         p.CuratorID,
		cardType:          p.Content.Type(),
		content:           cloneContent(p.Content),
		url:               cardURL,
		parentCardID:      cloneCardID(p.ParentCardID),
		publishedRecordID: clonePublishedRecordID(p.PublishedRecordID),
		createdAt:         created,
		updatedAt:         created,
	}, nil
}

// checkCardShape enforces the per-type parent and url rules and returns the
// url the card should carry.
func checkCardShape(op string, content CardContent, parent *CardID, u *URL) (*URL, error) {
	switch c := content.(type) {
	case URLContent:
		if parent != nil {
			return nil, Validation(op, "url cards cannot have a parent card")
		}
		if c.URL == "" {
			return nil, Validation(op, "url cards require a url")
		}
		if u != nil && *u != c.URL {
			return nil, Validation(op, "card url must match url content")
		}
		cu := c.URL
		return &cu, nil
	case NoteContent:
		return cloneURL(u), nil
	case HighlightContent:
		if parent == nil {
			return nil, Validation(op, "highlight cards require a parent card")
		}
		return cloneURL(u), nil
	default:
		return nil, Validation(op, "unsupported card content")
	}
}

func (c *Card) ID() CardID               { return c.id }
func (c *Card) CuratorID() CuratorID     { return c.curatorID }
func (c *Card) Type() CardType           { return c.cardType }
func (c *Card) Content() CardContent     { return cloneContent(c.content) }
func (c *Card) LibraryCount() int        { return c.libraryCount }
func (c *Card) CreatedAt() time.Time     { return c.createdAt }
func (c *Card) UpdatedAt() time.Time     { return c.updatedAt }
func (c *Card) IsURLCard() bool          { return c.cardType == CardTypeURL }
func (c *Card) IsNoteCard() bool         { return c.cardType == CardTypeNote }
func (c *Card) ParentCardID() *CardID    { return cloneCardID(c.parentCardID) }
func (c *Card) URL() *URL                { return cloneURL(c.url) }
func (c *Card) PublishedRecordID() *PublishedRecordID {
	return clonePublishedRecordID(c.publishedRecordID)
}

// LibraryMemberships returns a copy of the membership set.
func (c *Card) LibraryMemberships() []LibraryMembership {
	out := make([]LibraryMembership, len(c.memberships))
	for i, m := range c.memberships {
		m.PublishedRecordID = clonePublishedRecordID(m.PublishedRecordID)
		out[i] = m
	}
	return out
}

// IsInLibrary reports whether curator holds this card.
func (c *Card) IsInLibrary(curator CuratorID) bool {
	return c.membershipIndex(curator) >= 0
}

// Membership returns the curator's membership, if any.
func (c *Card) Membership(curator CuratorID) (LibraryMembership, bool) {
	i := c.membershipIndex(curator)
	if i < 0 {
		return LibraryMembership{}, false
	}
	m := c.memberships[i]
	m.PublishedRecordID = clonePublishedRecordID(m.PublishedRecordID)
	return m, true
}

func (c *Card) membershipIndex(curator CuratorID) int {
	for i, m := range c.memberships {
		if m.CuratorID == curator {
			return i
		}
	}
	return -1
}

// AddToLibrary adds a membership for curator.
func (c *Card) AddToLibrary(curator CuratorID, at time.Time) error {
	if curator == "" {
		return Validation("Card.AddToLibrary", "curator id is required")
	}
	if c.IsInLibrary(curator) {
		return Validation("Card.AddToLibrary", "card is already in the curator's library")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	c.memberships = append(c.memberships, LibraryMembership{CuratorID: curator, AddedAt: at})
	c.libraryCount = len(c.memberships)
	c.updatedAt = at
	c.events = append(c.events, CardAddedToLibrary{CardID: c.id, CuratorID: curator, At: at})
	return nil
}

// RemoveFromLibrary drops the curator's membership.
func (c *Card) RemoveFromLibrary(curator CuratorID) error {
	i := c.membershipIndex(curator)
	if i < 0 {
		return Validation("Card.RemoveFromLibrary", "card is not in the curator's library")
	}
	c.memberships = append(c.memberships[:i], c.memberships[i+1:]...)
	c.libraryCount = len(c.memberships)
	now := time.Now().UTC()
	c.updatedAt = now
	c.events = append(c.events, CardRemovedFromLibrary{CardID: c.id, CuratorID: curator, At: now})
	return nil
}

// MarkMembershipPublished stamps rid on the curator's membership. A
// membership keeps its URI forever; republishing may only refresh the CID.
// The first stamp ever also becomes the card-level record.
func (c *Card) MarkMembershipPublished(curator CuratorID, rid PublishedRecordID) error {
	const op = "Card.MarkMembershipPublished"
	i := c.membershipIndex(curator)
	if i < 0 {
		return Validation(op, "card is not in the curator's library")
	}
	if existing := c.memberships[i].PublishedRecordID; existing != nil && existing.URI != rid.URI {
		return Validation(op, "membership is already published as "+existing.URI)
	}
	stamped := rid
	c.memberships[i].PublishedRecordID = &stamped
	if c.publishedRecordID == nil {
		first := rid
		c.publishedRecordID = &first
	} else if c.publishedRecordID.URI == rid.URI {
		c.publishedRecordID.CID = rid.CID
	}
	c.updatedAt = time.Now().UTC()
	return nil
}

// UpdateContent replaces the content with another value of the same type.
func (c *Card) UpdateContent(content CardContent) error {
	if content == nil {
		return Validation("Card.UpdateContent", "content is required")
	}
	if content.Type() != c.cardType {
		return Validation("Card.UpdateContent", "content type "+string(content.Type())+" does not match card type "+string(c.cardType))
	}
	if u, ok := content.(URLContent); ok && c.url != nil && u.URL != *c.url {
		return Validation("Card.UpdateContent", "url of a url card cannot change")
	}
	c.content = cloneContent(content)
	c.updatedAt = time.Now().UTC()
	return nil
}

// PullEvents returns and clears the events recorded since the last pull.
func (c *Card) PullEvents() []DomainEvent {
	events := c.events
	c.events = nil
	return events
}

// CardState is the persistence snapshot of a Card.
type CardState struct {
	ID                CardID              `json:"id"`
	CuratorID         CuratorID           `json:"curatorId"`
	Type              CardType            `json:"type"`
	URL               *URL                `json:"url,omitempty"`
	Metadata          *URLMetadata        `json:"metadata,omitempty"`
	Text              string              `json:"text,omitempty"`
	Title             string              `json:"title,omitempty"`
	Note              string              `json:"note,omitempty"`
	ParentCardID      *CardID             `json:"parentCardId,omitempty"`
	Memberships       []LibraryMembership `json:"libraryMemberships"`
	LibraryCount      int                 `json:"libraryCount"`
	PublishedRecordID *PublishedRecordID  `json:"publishedRecordId,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

// State snapshots the card for persistence. Pending events are not included.
func (c *Card) State() CardState {
	s := CardState{
		ID:                c.id,
		CuratorID:         c.curatorID,
		Type:              c.cardType,
		URL:               cloneURL(c.url),
		ParentCardID:      cloneCardID(c.parentCardID),
		Memberships:       c.LibraryMemberships(),
		LibraryCount:      c.libraryCount,
		PublishedRecordID: clonePublishedRecordID(c.publishedRecordID),
		CreatedAt:         c.createdAt,
		UpdatedAt:         c.updatedAt,
	}
	switch content := c.content.(type) {
	case URLContent:
		s.Metadata = cloneMetadata(content.Metadata)
	case NoteContent:
		s.Text = content.Text
		s.Title = content.Title
	case HighlightContent:
		s.Text = content.Text
		s.Note = content.Note
	}
	return s
}

// RestoreCard rebuilds a Card from a snapshot, re-checking its invariants.
func RestoreCard(s CardState) (*Card, error) {
	const op = "RestoreCard"
	var content CardContent
	switch s.Type {
	case CardTypeURL:
		if s.URL == nil {
			return nil, Validation(op, "url card snapshot has no url")
		}
		content = URLContent{URL: *s.URL, Metadata: cloneMetadata(s.Metadata)}
	case CardTypeNote:
		content = NoteContent{Text: s.Text, Title: s.Title}
	case CardTypeHighlight:
		content = HighlightContent{Text: s.Text, Note: s.Note}
	default:
		return nil, Validation(op, "unknown card type "+string(s.Type))
	}
	cardURL, err := checkCardShape(op, content, s.ParentCardID, s.URL)
	if err != nil {
		return nil, err
	}
	if s.LibraryCount != len(s.Memberships) {
		return nil, Validation(op, "library count does not match memberships")
	}
	c := &Card{
		id:                s.ID,
		curatorID:         s.CuratorID,
		cardType:          s.Type,
		content:           content,
		url:               cardURL,
		parentCardID:      cloneCardID(s.ParentCardID),
		libraryCount:      s.LibraryCount,
		publishedRecordID: clonePublishedRecordID(s.PublishedRecordID),
		createdAt:         s.CreatedAt,
		updatedAt:         s.UpdatedAt,
	}
	seen := make(map[CuratorID]bool, len(s.Memberships))
	for _, m := range s.Memberships {
		if seen[m.CuratorID] {
			return nil, Validation(op, "duplicate membership for "+string(m.CuratorID))
		}
		seen[m.CuratorID] = true
		m.PublishedRecordID = clonePublishedRecordID(m.PublishedRecordID)
		c.memberships = append(c.memberships, m)
	}
	return c, nil
}

func cloneCardID(id *CardID) *CardID {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}

func cloneURL(u *URL) *URL {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}
