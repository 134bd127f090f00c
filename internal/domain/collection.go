package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// AccessType controls who may add or remove cards in a collection.
type AccessType string

const (
	AccessOpen   AccessType = "OPEN"
	AccessClosed AccessType = "CLOSED"
)

const (
	MaxCollectionNameLength        = 100
	MaxCollectionDescriptionLength = 500
)

// ParseAccessType accepts OPEN or CLOSED (case-insensitive).
func ParseAccessType(s string) (AccessType, error) {
	switch AccessType(strings.ToUpper(strings.TrimSpace(s))) {
	case AccessOpen:
		return AccessOpen, nil
	case AccessClosed:
		return AccessClosed, nil
	default:
		return "", Validation("ParseAccessType", "unknown access type: "+s)
	}
}

// CollectionName is a trimmed, non-empty, length-bounded name.
type CollectionName string

// NewCollectionName validates a collection name.
func NewCollectionName(s string) (CollectionName, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", Validation("NewCollectionName", "collection name must not be empty")
	}
	if utf8.RuneCountInString(s) > MaxCollectionNameLength {
		return "", Validation("NewCollectionName", "collection name is too long")
	}
	return CollectionName(s), nil
}

// CollectionDescription is a trimmed, length-bounded description.
type CollectionDescription string

// NewCollectionDescription validates a collection description.
func NewCollectionDescription(s string) (CollectionDescription, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > MaxCollectionDescriptionLength {
		return "", Validation("NewCollectionDescription", "collection description is too long")
	}
	return CollectionDescription(s), nil
}

// CardLink records that a card belongs to a collection. A link may exist
// before it has been published.
type CardLink struct {
	CardID            CardID             `json:"cardId"`
	AddedBy           CuratorID          `json:"addedBy"`
	AddedAt           time.Time          `json:"addedAt"`
	PublishedRecordID *PublishedRecordID `json:"publishedRecordId,omitempty"`
}

// Collection is a named, access-controlled set of card links.
type Collection struct {
	id                CollectionID
	authorID          CuratorID
	name              CollectionName
	description       CollectionDescription
	accessType        AccessType
	collaborators     []CuratorID
	cardLinks         []CardLink
	publishedRecordID *PublishedRecordID
	createdAt         time.Time
	updatedAt         time.Time
	events            []DomainEvent
}

// CollectionParams carries the inputs of NewCollection.
type CollectionParams struct {
	ID                CollectionID
	AuthorID          CuratorID
	Name              string
	Description       string
	AccessType        AccessType
	Collaborators     []CuratorID
	PublishedRecordID *PublishedRecordID
	CreatedAt         time.Time
}

// NewCollection validates params and returns an empty collection.
// AccessType defaults to CLOSED.
func NewCollection(p CollectionParams) (*Collection, error) {
	const op = "NewCollection"
	if p.AuthorID == "" {
		return nil, Validation(op, "author id is required")
	}
	name, err := NewCollectionName(p.Name)
	if err != nil {
		return nil, err
	}
	desc, err := NewCollectionDescription(p.Description)
	if err != nil {
		return nil, err
	}
	access := p.AccessType
	if access == "" {
		access = AccessClosed
	}
	if access != AccessOpen && access != AccessClosed {
		return nil, Validation(op, "unknown access type: "+string(access))
	}
	id := p.ID
	if id == "" {
		id = NewCollectionID()
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	c := &Collection{
		id:                id,
		authorID:          p.AuthorID,
		name:              name,
		description:       desc,
		accessType:        access,
		publishedRecordID: clonePublishedRecordID(p.PublishedRecordID),
		createdAt:         created,
		updatedAt:         created,
	}
	for _, collab := range p.Collaborators {
		if collab != "" && collab != p.AuthorID && !c.IsCollaborator(collab) {
			c.collaborators = append(c.collaborators, collab)
		}
	}
	return c, nil
}

func (c *Collection) ID() CollectionID                   { return c.id }
func (c *Collection) AuthorID() CuratorID                { return c.authorID }
func (c *Collection) Name() CollectionName               { return c.name }
func (c *Collection) Description() CollectionDescription { return c.description }
func (c *Collection) AccessType() AccessType             { return c.accessType }
func (c *Collection) CreatedAt() time.Time               { return c.createdAt }
func (c *Collection) UpdatedAt() time.Time               { return c.updatedAt }
func (c *Collection) CardCount() int                     { return len(c.cardLinks) }
func (c *Collection) PublishedRecordID() *PublishedRecordID {
	return clonePublishedRecordID(c.publishedRecordID)
}

// Collaborators returns a copy of the collaborator list.
func (c *Collection) Collaborators() []CuratorID {
	return append([]CuratorID(nil), c.collaborators...)
}

// CardLinks returns a copy of the card links.
func (c *Collection) CardLinks() []CardLink {
	out := make([]CardLink, len(c.cardLinks))
	for i, l := range c.cardLinks {
		l.PublishedRecordID = clonePublishedRecordID(l.PublishedRecordID)
		out[i] = l
	}
	return out
}

// CardLink returns the link for cardID, if any.
func (c *Collection) CardLink(cardID CardID) (CardLink, bool) {
	i := c.linkIndex(cardID)
	if i < 0 {
		return CardLink{}, false
	}
	l := c.cardLinks[i]
	l.PublishedRecordID = clonePublishedRecordID(l.PublishedRecordID)
	return l, true
}

// HasCard reports whether the collection links cardID.
func (c *Collection) HasCard(cardID CardID) bool {
	return c.linkIndex(cardID) >= 0
}

func (c *Collection) linkIndex(cardID CardID) int {
	for i, l := range c.cardLinks {
		if l.CardID == cardID {
			return i
		}
	}
	return -1
}

// IsAuthor reports whether actor authored the collection.
func (c *Collection) IsAuthor(actor CuratorID) bool { return actor == c.authorID }

// IsCollaborator reports whether actor was granted collaborator rights.
func (c *Collection) IsCollaborator(actor CuratorID) bool {
	for _, collab := range c.collaborators {
		if collab == actor {
			return true
		}
	}
	return false
}

// CanAddCard applies the access rules: the author always may; OPEN
// collections accept anyone; CLOSED ones only collaborators.
func (c *Collection) CanAddCard(actor CuratorID) bool {
	if c.IsAuthor(actor) {
		return true
	}
	switch c.accessType {
	case AccessOpen:
		return true
	case AccessClosed:
		return c.IsCollaborator(actor)
	default:
		return false
	}
}

// CanRemoveCard follows the same rules as CanAddCard.
func (c *Collection) CanRemoveCard(actor CuratorID) bool {
	return c.CanAddCard(actor)
}

// AddCard links cardID. Adding an already linked card is a no-op and
// returns added=false.
func (c *Collection) AddCard(cardID CardID, actor CuratorID, at time.Time) (added bool, err error) {
	if !c.CanAddCard(actor) {
		return false, Access("Collection.AddCard", string(actor)+" cannot add cards to collection "+string(c.id))
	}
	if c.HasCard(cardID) {
		return false, nil
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	c.cardLinks = append(c.cardLinks, CardLink{CardID: cardID, AddedBy: actor, AddedAt: at})
	c.updatedAt = at
	c.events = append(c.events, CardAddedToCollection{CollectionID: c.id, CardID: cardID, AddedBy: actor, At: at})
	return true, nil
}

// RemoveCard unlinks cardID and returns the removed link. Removing a card
// that is not linked returns removed=false.
func (c *Collection) RemoveCard(cardID CardID, actor CuratorID) (link CardLink, removed bool, err error) {
	if !c.CanRemoveCard(actor) {
		return CardLink{}, false, Access("Collection.RemoveCard", string(actor)+" cannot remove cards from collection "+string(c.id))
	}
	i := c.linkIndex(cardID)
	if i < 0 {
		return CardLink{}, false, nil
	}
	link = c.cardLinks[i]
	c.cardLinks = append(c.cardLinks[:i], c.cardLinks[i+1:]...)
	now := time.Now().UTC()
	c.updatedAt = now
	c.events = append(c.events, CardRemovedFromCollection{CollectionID: c.id, CardID: cardID, RemovedBy: actor, At: now})
	return link, true, nil
}

// MarkCardLinkPublished stamps rid on the link for cardID. The link URI is
// set once; a later stamp may only refresh the CID.
func (c *Collection) MarkCardLinkPublished(cardID CardID, rid PublishedRecordID) error {
	const op = "Collection.MarkCardLinkPublished"
	i := c.linkIndex(cardID)
	if i < 0 {
		return Validation(op, "card "+string(cardID)+" is not in collection "+string(c.id))
	}
	if existing := c.cardLinks[i].PublishedRecordID; existing != nil && existing.URI != rid.URI {
		return Validation(op, "card link is already published as "+existing.URI)
	}
	stamped := rid
	c.cardLinks[i].PublishedRecordID = &stamped
	c.updatedAt = time.Now().UTC()
	return nil
}

// MarkPublished stamps the collection's own record.
func (c *Collection) MarkPublished(rid PublishedRecordID) error {
	if c.publishedRecordID != nil && c.publishedRecordID.URI != rid.URI {
		return Validation("Collection.MarkPublished", "collection is already published as "+c.publishedRecordID.URI)
	}
	stamped := rid
	c.publishedRecordID = &stamped
	c.updatedAt = time.Now().UTC()
	return nil
}

// ChangeAccessType is author-only.
func (c *Collection) ChangeAccessType(actor CuratorID, access AccessType) error {
	const op = "Collection.ChangeAccessType"
	if !c.IsAuthor(actor) {
		return Access(op, "only the author can change the access type")
	}
	if access != AccessOpen && access != AccessClosed {
		return Validation(op, "unknown access type: "+string(access))
	}
	c.accessType = access
	c.updatedAt = time.Now().UTC()
	return nil
}

// AddCollaborator is author-only and idempotent.
func (c *Collection) AddCollaborator(actor, collaborator CuratorID) error {
	const op = "Collection.AddCollaborator"
	if !c.IsAuthor(actor) {
		return Access(op, "only the author can add collaborators")
	}
	if collaborator == "" {
		return Validation(op, "collaborator id is required")
	}
	if collaborator == c.authorID || c.IsCollaborator(collaborator) {
		return nil
	}
	c.collaborators = append(c.collaborators, collaborator)
	c.updatedAt = time.Now().UTC()
	return nil
}

// RemoveCollaborator is author-only and idempotent.
func (c *Collection) RemoveCollaborator(actor, collaborator CuratorID) error {
	if !c.IsAuthor(actor) {
		return Access("Collection.RemoveCollaborator", "only the author can remove collaborators")
	}
	for i, collab := range c.collaborators {
		if collab == collaborator {
			c.collaborators = append(c.collaborators[:i], c.collaborators[i+1:]...)
			c.updatedAt = time.Now().UTC()
			return nil
		}
	}
	return nil
}

// UpdateDetails renames or re-describes the collection. Author-only.
func (c *Collection) UpdateDetails(actor CuratorID, name, description string) error {
	if !c.IsAuthor(actor) {
		return Access("Collection.UpdateDetails", "only the author can update the collection")
	}
	n, err := NewCollectionName(name)
	if err != nil {
		return err
	}
	d, err := NewCollectionDescription(description)
	if err != nil {
		return err
	}
	c.name = n
	c.description = d
	c.updatedAt = time.Now().UTC()
	return nil
}

// PullEvents returns and clears the events recorded since the last pull.
func (c *Collection) PullEvents() []DomainEvent {
	events := c.events
	c.events = nil
	return events
}

// CollectionState is the persistence snapshot of a Collection.
type CollectionState struct {
	ID                CollectionID       `json:"id"`
	AuthorID          CuratorID          `json:"authorId"`
	Name              string             `json:"name"`
	Description       string             `json:"description,omitempty"`
	AccessType        AccessType         `json:"accessType"`
	Collaborators     []CuratorID        `json:"collaborators,omitempty"`
	CardLinks         []CardLink         `json:"cardLinks"`
	PublishedRecordID *PublishedRecordID `json:"publishedRecordId,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// State snapshots the collection for persistence.
func (c *Collection) State() CollectionState {
	return CollectionState{
		ID:                c.id,
		AuthorID:          c.authorID,
		Name:              string(c.name),
		Description:       string(c.description),
		AccessType:        c.accessType,
		Collaborators:     c.Collaborators(),
		CardLinks:         c.CardLinks(),
		PublishedRecordID: clonePublishedRecordID(c.publishedRecordID),
		CreatedAt:         c.createdAt,
		UpdatedAt:         c.updatedAt,
	}
}

// RestoreCollection rebuilds a Collection from a snapshot.
func RestoreCollection(s CollectionState) (*Collection, error) {
	c, err := NewCollection(CollectionParams{
		ID:                s.ID,
		AuthorID:          s.AuthorID,
		Name:              s.Name,
		Description:       s.Description,
		AccessType:        s.AccessType,
		Collaborators:     s.Collaborators,
		PublishedRecordID: s.PublishedRecordID,
		CreatedAt:         s.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	for _, l := range s.CardLinks {
		if c.HasCard(l.CardID) {
			return nil, Validation("RestoreCollection", "duplicate card link for "+string(l.CardID))
		}
		l.PublishedRecordID = clonePublishedRecordID(l.PublishedRecordID)
		c.cardLinks = append(c.cardLinks, l)
	}
	c.updatedAt = s.UpdatedAt
	return c, nil
}
