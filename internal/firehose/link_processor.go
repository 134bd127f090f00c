package firehose

import (
	"context"
	"strings"

	"github.com/cosmik-network/cardsync/internal/curation"
	"github.com/cosmik-network/cardsync/internal/domain"
	"github.com/cosmik-network/cardsync/internal/logger"
	"github.com/cosmik-network/cardsync/internal/usecase"
)

// CollectionLinkEventProcessor replays collection link record events.
// Links are immutable, so updates are ignored.
type CollectionLinkEventProcessor struct {
	commands *usecase.Commands
	resolver *curation.AtURIResolutionService
	logger   logger.Logger
}

// NewCollectionLinkEventProcessor creates a processor for network.cosmik.collectionLink events
func NewCollectionLinkEventProcessor(commands *usecase.Commands, resolver *curation.AtURIResolutionService, log logger.Logger) *CollectionLinkEventProcessor {
	return &CollectionLinkEventProcessor{commands: commands, resolver: resolver, logger: log}
}

func (p *CollectionLinkEventProcessor) Process(ctx context.Context, ev Event) Outcome {
	curator := ev.Curator()
	if curator == "" {
		return skipped("at-uri authority is not a did")
	}

	switch ev.EventType {
	case EventCreate:
		return p.create(ctx, ev, curator)
	case EventDelete:
		return p.delete(ctx, ev, curator)
	case EventUpdate:
		return skipped("collection links are immutable")
	default:
		return skipped("unknown event type " + string(ev.EventType))
	}
}

func (p *CollectionLinkEventProcessor) create(ctx context.Context, ev Event, curator domain.CuratorID) Outcome {
	var rec CollectionLinkRecord
	if !decode(ev.Record, &rec) {
		return skipped("malformed collection link record")
	}
	rid, ok := ev.PublishedRecordID()
	if !ok {
		return skipped("create event without a valid record id")
	}
	if strings.TrimSpace(rec.Collection.URI) == "" || strings.TrimSpace(rec.Card.URI) == "" {
		return skipped("collection link record is missing a reference")
	}

	collectionID, err := p.resolver.ResolveCollectionID(ctx, rec.Collection.URI)
	if err != nil {
		return settle(p.logger, ev, "ResolveCollectionID", err)
	}
	if collectionID == nil {
		return skipped("collection is not known")
	}
	cardID, err := p.resolver.ResolveCardID(ctx, rec.Card.URI)
	if err != nil {
		return settle(p.logger, ev, "ResolveCardID", err)
	}
	if cardID == nil {
		return skipped("card is not known")
	}

	_, err = p.commands.AddCardToCollection(ctx, usecase.AddCardToCollectionRequest{
		CardID:            *cardID,
		CollectionID:      *collectionID,
		CuratorID:         curator,
		SkipPublishing:    true,
		PublishedRecordID: &rid,
	})
	if err != nil {
		return settle(p.logger, ev, "AddCardToCollection", err)
	}
	return applied()
}

func (p *CollectionLinkEventProcessor) delete(ctx context.Context, ev Event, curator domain.CuratorID) Outcome {
	link, err := p.resolver.ResolveCollectionLinkID(ctx, ev.AtURI)
	if err != nil {
		return settle(p.logger, ev, "ResolveCollectionLinkID", err)
	}
	if link == nil {
		return skipped("collection link is not known")
	}

	err = p.commands.RemoveCardFromCollection(ctx, usecase.RemoveCardFromCollectionRequest{
		CardID:         link.CardID,
		CollectionID:   link.CollectionID,
		CuratorID:      curator,
		SkipPublishing: true,
	})
	if err != nil {
		return settle(p.logger, ev, "RemoveCardFromCollection", err)
	}
	return applied()
}
