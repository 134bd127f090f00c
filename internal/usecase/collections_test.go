package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmik-network/cardsync/internal/domain"
	"github.com/cosmik-network/cardsync/internal/publisher"
)

func TestCreateCollection(t *testing.T) {
	e := newEnv()
	c, err := e.commands.CreateCollection(context.Background(), CreateCollectionRequest{
		CuratorID:     alice,
		Name:          "Go",
		Description:   "all things go",
		AccessType:    "OPEN",
		Collaborators: []domain.CuratorID{bob},
	})
	require.NoError(t, err)

	stored := e.collection(t, c.ID())
	require.NotNil(t, stored)
	assert.Equal(t, domain.AccessOpen, stored.AccessType())
	assert.Equal(t, []domain.CuratorID{bob}, stored.Collaborators())
	require.NotNil(t, stored.PublishedRecordID())
	assert.Equal(t, domain.CollectionNSID, domain.RecordNSIDOf(stored.PublishedRecordID().URI))
	assert.Equal(t, 1, e.rec.CallCount(publisher.MethodPublishCollection))
}

func TestCreateCollectionDefaultsToClosed(t *testing.T) {
	e := newEnv()
	c := e.createCollection(t, alice, "")
	assert.Equal(t, domain.AccessClosed, c.AccessType())
}

func TestCreateCollectionErrors(t *testing.T) {
	tests := []struct {
		name string
		req  CreateCollectionRequest
		kind domain.ErrorKind
	}{
		{name: "invalid curator", req: CreateCollectionRequest{CuratorID: "alice", Name: "x"}, kind: domain.KindValidation},
		{name: "empty name", req: CreateCollectionRequest{CuratorID: alice}, kind: domain.KindValidation},
		{name: "unknown access", req: CreateCollectionRequest{CuratorID: alice, Name: "x", AccessType: "SECRET"}, kind: domain.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv()
			_, err := e.commands.CreateCollection(context.Background(), tt.req)
			assert.True(t, domain.IsKind(err, tt.kind), "got %v", err)
			assert.Equal(t, 0, e.store.Collections().Count())
		})
	}

	t.Run("publish failure", func(t *testing.T) {
		e := newEnv()
		e.rec.FailOn(publisher.MethodPublishCollection, errors.New("pds unavailable"))
		_, err := e.commands.CreateCollection(context.Background(), CreateCollectionRequest{CuratorID: alice, Name: "x"})
		assert.True(t, domain.IsKind(err, domain.KindUnexpected), "got %v", err)
		assert.Equal(t, 0, e.store.Collections().Count())
	})
}

func TestCreateCollectionReplayIsIdempotent(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	record := mustRID(t, "at://did:plc:alice/network.cosmik.collection/3kcoll")
	req := CreateCollectionRequest{CuratorID: alice, Name: "Go", PublishedRecordID: record, SkipPublishing: true}

	first, err := e.commands.CreateCollection(ctx, req)
	require.NoError(t, err)
	second, err := e.commands.CreateCollection(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID(), second.ID())
	assert.Equal(t, 1, e.store.Collections().Count())
	assert.Equal(t, 0, e.rec.CallCount(""))
}

func TestUpdateCollection(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	c, err := e.commands.CreateCollection(ctx, CreateCollectionRequest{CuratorID: alice, Name: "Go", Collaborators: []domain.CuratorID{bob}})
	require.NoError(t, err)
	uri := c.PublishedRecordID().URI

	updated, err := e.commands.UpdateCollection(ctx, UpdateCollectionRequest{
		CollectionID:  c.ID(),
		CuratorID:     alice,
		Name:          "Golang",
		Description:   "renamed",
		AccessType:    "OPEN",
		Collaborators: []domain.CuratorID{},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.CollectionName("Golang"), updated.Name())
	assert.Equal(t, domain.AccessOpen, updated.AccessType())
	assert.Empty(t, updated.Collaborators())
	assert.Equal(t, uri, updated.PublishedRecordID().URI, "republishing keeps the record uri")
	assert.Equal(t, 2, e.rec.CallCount(publisher.MethodPublishCollection))

	_, err = e.commands.UpdateCollection(ctx, UpdateCollectionRequest{CollectionID: c.ID(), CuratorID: bob, Name: "Mine"})
	assert.True(t, domain.IsKind(err, domain.KindAccess), "got %v", err)

	_, err = e.commands.UpdateCollection(ctx, UpdateCollectionRequest{CollectionID: domain.NewCollectionID(), CuratorID: alice, Name: "x"})
	assert.True(t, domain.IsKind(err, domain.KindNotFound), "got %v", err)
}

func TestUpdateCollectionKeepsCollaboratorsWhenNil(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	c, err := e.commands.CreateCollection(ctx, CreateCollectionRequest{CuratorID: alice, Name: "Go", Collaborators: []domain.CuratorID{bob}})
	require.NoError(t, err)

	updated, err := e.commands.UpdateCollection(ctx, UpdateCollectionRequest{CollectionID: c.ID(), CuratorID: alice, Name: "Go"})
	require.NoError(t, err)
	assert.Equal(t, []domain.CuratorID{bob}, updated.Collaborators())
	assert.Equal(t, domain.AccessClosed, updated.AccessType())
}

func TestDeleteCollectionUnpublishesLinksFirst(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	c := e.createCollection(t, alice, "CLOSED")
	e.addURL(t, AddURLToLibraryRequest{URL: "https://example.com/a", CuratorID: alice, CollectionIDs: []domain.CollectionID{c.ID()}})
	e.addURL(t, AddURLToLibraryRequest{URL: "https://example.com/b", CuratorID: alice, CollectionIDs: []domain.CollectionID{c.ID()}})
	e.rec.Reset()

	require.NoError(t, e.commands.DeleteCollection(ctx, DeleteCollectionRequest{CollectionID: c.ID(), CuratorID: alice}))

	assert.Nil(t, e.collection(t, c.ID()))
	calls := e.rec.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, publisher.MethodUnpublishCollectionAdd, calls[0].Method)
	assert.Equal(t, publisher.MethodUnpublishCollectionAdd, calls[1].Method)
	assert.Equal(t, publisher.MethodUnpublishCollection, calls[2].Method)
	assert.Equal(t, 2, e.store.Cards().Count(), "cards survive their collection")
}

func TestDeleteCollectionErrors(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	c := e.createCollection(t, alice, "OPEN")

	err := e.commands.DeleteCollection(ctx, DeleteCollectionRequest{CollectionID: c.ID(), CuratorID: bob})
	assert.True(t, domain.IsKind(err, domain.KindAccess), "got %v", err)

	e.rec.FailOn(publisher.MethodUnpublishCollection, errors.New("pds unavailable"))
	err = e.commands.DeleteCollection(ctx, DeleteCollectionRequest{CollectionID: c.ID(), CuratorID: alice})
	assert.True(t, domain.IsKind(err, domain.KindUnexpected), "got %v", err)
	assert.NotNil(t, e.collection(t, c.ID()), "collection stays when unpublishing fails")

	err = e.commands.DeleteCollection(ctx, DeleteCollectionRequest{CollectionID: domain.NewCollectionID(), CuratorID: alice})
	assert.True(t, domain.IsKind(err, domain.KindNotFound), "got %v", err)
}

func TestAddAndRemoveCardFromCollection(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	c := e.createCollection(t, alice, "OPEN")
	added := e.addURL(t, AddURLToLibraryRequest{URL: "https://example.com/a", CuratorID: bob})

	_, err := e.commands.AddCardToCollection(ctx, AddCardToCollectionRequest{CardID: added.URLCardID, CollectionID: c.ID(), CuratorID: bob})
	require.NoError(t, err)
	link, ok := e.collection(t, c.ID()).CardLink(added.URLCardID)
	require.True(t, ok)
	assert.Equal(t, bob, link.AddedBy)

	require.NoError(t, e.commands.RemoveCardFromCollection(ctx, RemoveCardFromCollectionRequest{CardID: added.URLCardID, CollectionID: c.ID(), CuratorID: bob}))
	assert.False(t, e.collection(t, c.ID()).HasCard(added.URLCardID))

	_, err = e.commands.AddCardToCollection(ctx, AddCardToCollectionRequest{CardID: domain.NewCardID(), CollectionID: c.ID(), CuratorID: bob})
	assert.True(t, domain.IsKind(err, domain.KindNotFound), "got %v", err)
}

func TestAddCardToCollectionStampsReplayRecord(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	c := e.createCollection(t, alice, "CLOSED")
	added := e.addURL(t, AddURLToLibraryRequest{URL: "https://example.com/a", CuratorID: alice})
	e.rec.Reset()
	record := mustRID(t, "at://did:plc:alice/network.cosmik.collectionLink/3klink")

	_, err := e.commands.AddCardToCollection(ctx, AddCardToCollectionRequest{
		CardID:            added.URLCardID,
		CollectionID:      c.ID(),
		CuratorID:         alice,
		SkipPublishing:    true,
		PublishedRecordID: record,
	})
	require.NoError(t, err)

	link, _ := e.collection(t, c.ID()).CardLink(added.URLCardID)
	require.NotNil(t, link.PublishedRecordID)
	assert.Equal(t, record.URI, link.PublishedRecordID.URI)
	assert.Equal(t, 0, e.rec.CallCount(""))
}
