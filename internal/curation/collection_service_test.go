package curation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmik-network/cardsync/internal/domain"
	"github.com/cosmik-network/cardsync/internal/publisher"
)

func TestAddCardToCollectionPublishesLink(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	card := e.addToLibrary(t, newURLCard(t, alice, "https://example.com/a"), alice)
	coll := e.saveCollection(t, alice, domain.AccessClosed)

	updated, err := e.linking.AddCardToCollection(ctx, card, coll.ID(), alice, CollectionOptions{})
	require.NoError(t, err)

	link, ok := updated.CardLink(card.ID())
	require.True(t, ok)
	require.NotNil(t, link.PublishedRecordID)
	assert.Equal(t, domain.CollectionLinkNSID, domain.RecordNSIDOf(link.PublishedRecordID.URI))
	assert.Equal(t, 1, e.rec.CallCount(publisher.MethodPublishCollectionAdd))
	assert.True(t, e.collection(t, coll.ID()).HasCard(card.ID()))
	assert.Equal(t, int64(1), e.events.Count("collection.card_added"))

	again, err := e.linking.AddCardToCollection(ctx, card, coll.ID(), alice, CollectionOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, again.CardCount())
	assert.Equal(t, 1, e.rec.CallCount(publisher.MethodPublishCollectionAdd), "duplicate add does not publish")
	assert.Equal(t, int64(1), e.events.Count("collection.card_added"))
}

func TestAddCardToCollectionAccess(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		access        domain.AccessType
		collaborators []domain.CuratorID
		actor         domain.CuratorID
		wantErr       bool
	}{
		{name: "author on closed", access: domain.AccessClosed, actor: alice},
		{name: "collaborator on closed", access: domain.AccessClosed, collaborators: []domain.CuratorID{bob}, actor: bob},
		{name: "stranger on closed", access: domain.AccessClosed, actor: bob, wantErr: true},
		{name: "stranger on open", access: domain.AccessOpen, actor: bob},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv()
			card := e.addToLibrary(t, newURLCard(t, tt.actor, "https://example.com/a"), tt.actor)
			coll := e.saveCollection(t, alice, tt.access, tt.collaborators...)

			_, err := e.linking.AddCardToCollection(ctx, card, coll.ID(), tt.actor, CollectionOptions{})
			if tt.wantErr {
				assert.True(t, domain.IsKind(err, domain.KindAccess), "got %v", err)
				assert.Equal(t, 0, e.rec.CallCount(publisher.MethodPublishCollectionAdd))
				assert.False(t, e.collection(t, coll.ID()).HasCard(card.ID()))
				return
			}
			require.NoError(t, err)
			assert.True(t, e.collection(t, coll.ID()).HasCard(card.ID()))
		})
	}
}

func TestAddCardToCollectionNotFound(t *testing.T) {
	e := newEnv()
	card := e.addToLibrary(t, newURLCard(t, alice, "https://example.com/a"), alice)

	_, err := e.linking.AddCardToCollection(context.Background(), card, domain.NewCollectionID(), alice, CollectionOptions{})
	assert.True(t, domain.IsKind(err, domain.KindNotFound), "got %v", err)
}

func TestAddCardToCollectionPublishFailure(t *testing.T) {
	e := newEnv()
	card := e.addToLibrary(t, newURLCard(t, alice, "https://example.com/a"), alice)
	coll := e.saveCollection(t, alice, domain.AccessClosed)
	e.rec.FailOn(publisher.MethodPublishCollectionAdd, errors.New("pds unavailable"))

	_, err := e.linking.AddCardToCollection(context.Background(), card, coll.ID(), alice, CollectionOptions{})
	assert.True(t, domain.IsKind(err, domain.KindUnexpected), "got %v", err)
	assert.False(t, e.collection(t, coll.ID()).HasCard(card.ID()))
}

func TestAddCardToCollectionSkipPublishing(t *testing.T) {
	ctx := context.Background()
	record := rid(t, "at://did:plc:alice/network.cosmik.collectionLink/3klink")

	t.Run("stamps the supplied record", func(t *testing.T) {
		e := newEnv()
		card := e.addToLibrary(t, newURLCard(t, alice, "https://example.com/a"), alice)
		coll := e.saveCollection(t, alice, domain.AccessClosed)
		e.rec.Reset()

		updated, err := e.linking.AddCardToCollection(ctx, card, coll.ID(), alice, CollectionOptions{
			SkipPublishing:     true,
			PublishedRecordIDs: map[domain.CollectionID]domain.PublishedRecordID{coll.ID(): record},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, e.rec.CallCount(""))

		link, _ := updated.CardLink(card.ID())
		require.NotNil(t, link.PublishedRecordID)
		assert.Equal(t, record.URI, link.PublishedRecordID.URI)
	})

	t.Run("stamps an existing unpublished link", func(t *testing.T) {
		e := newEnv()
		card := e.addToLibrary(t, newURLCard(t, alice, "https://example.com/a"), alice)
		coll := e.saveCollection(t, alice, domain.AccessClosed)

		_, err := e.linking.AddCardToCollection(ctx, card, coll.ID(), alice, CollectionOptions{SkipPublishing: true})
		require.NoError(t, err)
		link, _ := e.collection(t, coll.ID()).CardLink(card.ID())
		assert.Nil(t, link.PublishedRecordID)

		_, err = e.linking.AddCardToCollection(ctx, card, coll.ID(), alice, CollectionOptions{
			SkipPublishing:     true,
			PublishedRecordIDs: map[domain.CollectionID]domain.PublishedRecordID{coll.ID(): record},
		})
		require.NoError(t, err)

		link, _ = e.collection(t, coll.ID()).CardLink(card.ID())
		require.NotNil(t, link.PublishedRecordID)
		assert.Equal(t, record.URI, link.PublishedRecordID.URI)
		assert.Equal(t, int64(1), e.events.Count("collection.card_added"))
	})
}

func TestAddCardToCollectionsStopsAtFirstFailure(t *testing.T) {
	e := newEnv()
	card := e.addToLibrary(t, newURLCard(t, alice, "https://example.com/a"), alice)
	c1 := e.saveCollection(t, alice, domain.AccessClosed)
	c3 := e.saveCollection(t, alice, domain.AccessClosed)

	ids := []domain.CollectionID{c1.ID(), domain.NewCollectionID(), c3.ID()}
	updated, err := e.linking.AddCardToCollections(context.Background(), card, ids, alice, CollectionOptions{})

	assert.True(t, domain.IsKind(err, domain.KindNotFound), "got %v", err)
	require.Len(t, updated, 1)
	assert.Equal(t, c1.ID(), updated[0].ID())
	assert.True(t, e.collection(t, c1.ID()).HasCard(card.ID()))
	assert.False(t, e.collection(t, c3.ID()).HasCard(card.ID()))
}

func TestRemoveCardFromCollection(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	card := e.addToLibrary(t, newURLCard(t, alice, "https://example.com/a"), alice)
	coll := e.saveCollection(t, alice, domain.AccessClosed)
	linked, err := e.linking.AddCardToCollection(ctx, card, coll.ID(), alice, CollectionOptions{})
	require.NoError(t, err)
	link, _ := linked.CardLink(card.ID())
	e.rec.Reset()

	updated, err := e.linking.RemoveCardFromCollection(ctx, card.ID(), coll.ID(), alice, CollectionOptions{})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.False(t, updated.HasCard(card.ID()))

	calls := e.rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, publisher.MethodUnpublishCollectionAdd, calls[0].Method)
	assert.Equal(t, link.PublishedRecordID.URI, calls[0].Record.URI)
	assert.Equal(t, int64(1), e.events.Count("collection.card_removed"))

	again, err := e.linking.RemoveCardFromCollection(ctx, card.ID(), coll.ID(), alice, CollectionOptions{})
	require.NoError(t, err)
	assert.Nil(t, again, "unlinked card yields no update")
	assert.Equal(t, 1, e.rec.CallCount(""))
}

func TestRemoveCardFromCollectionAccessDenied(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	card := e.addToLibrary(t, newURLCard(t, alice, "https://example.com/a"), alice)
	coll := e.saveCollection(t, alice, domain.AccessClosed)
	_, err := e.linking.AddCardToCollection(ctx, card, coll.ID(), alice, CollectionOptions{})
	require.NoError(t, err)
	e.rec.Reset()

	_, err = e.linking.RemoveCardFromCollection(ctx, card.ID(), coll.ID(), bob, CollectionOptions{})
	assert.True(t, domain.IsKind(err, domain.KindAccess), "got %v", err)
	assert.Equal(t, 0, e.rec.CallCount(""))
	assert.True(t, e.collection(t, coll.ID()).HasCard(card.ID()))
}

func TestRemoveCardFromCollectionUnpublishFailure(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	card := e.addToLibrary(t, newURLCard(t, alice, "https://example.com/a"), alice)
	coll := e.saveCollection(t, alice, domain.AccessClosed)
	_, err := e.linking.AddCardToCollection(ctx, card, coll.ID(), alice, CollectionOptions{})
	require.NoError(t, err)
	e.rec.FailOn(publisher.MethodUnpublishCollectionAdd, errors.New("pds unavailable"))

	_, err = e.linking.RemoveCardFromCollection(ctx, card.ID(), coll.ID(), alice, CollectionOptions{})
	assert.True(t, domain.IsKind(err, domain.KindUnexpected), "got %v", err)
	assert.True(t, e.collection(t, coll.ID()).HasCard(card.ID()), "link stays when unpublishing fails")
}

func TestRemoveCardFromCollectionsSkipsUnlinked(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	card := e.addToLibrary(t, newURLCard(t, alice, "https://example.com/a"), alice)
	c1 := e.saveCollection(t, alice, domain.AccessClosed)
	c2 := e.saveCollection(t, alice, domain.AccessClosed)
	_, err := e.linking.AddCardToCollection(ctx, card, c1.ID(), alice, CollectionOptions{})
	require.NoError(t, err)

	updated, err := e.linking.RemoveCardFromCollections(ctx, card.ID(), []domain.CollectionID{c1.ID(), c2.ID()}, alice, CollectionOptions{})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, c1.ID(), updated[0].ID())
}
