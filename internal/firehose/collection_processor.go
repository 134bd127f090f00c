package firehose

import (
	"context"

	"github.com/cosmik-network/cardsync/internal/curation"
	"github.com/cosmik-network/cardsync/internal/domain"
	"github.com/cosmik-network/cardsync/internal/logger"
	"github.com/cosmik-network/cardsync/internal/usecase"
)

// CollectionEventProcessor replays collection record events.
type CollectionEventProcessor struct {
	commands *usecase.Commands
	resolver *curation.AtURIResolutionService
	logger   logger.Logger
}

// NewCollectionEventProcessor creates a processor for network.cosmik.collection events
func NewCollectionEventProcessor(commands *usecase.Commands, resolver *curation.AtURIResolutionService, log logger.Logger) *CollectionEventProcessor {
	return &CollectionEventProcessor{commands: commands, resolver: resolver, logger: log}
}

func (p *CollectionEventProcessor) Process(ctx context.Context, ev Event) Outcome {
	curator := ev.Curator()
	if curator == "" {
		return skipped("at-uri authority is not a did")
	}

	switch ev.EventType {
	case EventCreate:
		return p.create(ctx, ev, curator)
	case EventUpdate:
		return p.update(ctx, ev, curator)
	case EventDelete:
		return p.delete(ctx, ev, curator)
	default:
		return skipped("unknown event type " + string(ev.EventType))
	}
}

func (p *CollectionEventProcessor) create(ctx context.Context, ev Event, curator domain.CuratorID) Outcome {
	var rec CollectionRecord
	if !decode(ev.Record, &rec) {
		return skipped("malformed collection record")
	}
	rid, ok := ev.PublishedRecordID()
	if !ok {
		return skipped("create event without a valid record id")
	}

	_, err := p.commands.CreateCollection(ctx, usecase.CreateCollectionRequest{
		CuratorID:         curator,
		Name:              rec.Name,
		Description:       rec.Description,
		AccessType:        rec.AccessType,
		Collaborators:     collaborators(rec.Collaborators),
		PublishedRecordID: &rid,
		SkipPublishing:    true,
	})
	if err != nil {
		return settle(p.logger, ev, "CreateCollection", err)
	}
	return applied()
}

func (p *CollectionEventProcessor) update(ctx context.Context, ev Event, curator domain.CuratorID) Outcome {
	var rec CollectionRecord
	if !decode(ev.Record, &rec) {
		return skipped("malformed collection record")
	}
	collectionID, err := p.resolver.ResolveCollectionID(ctx, ev.AtURI)
	if err != nil {
		return settle(p.logger, ev, "ResolveCollectionID", err)
	}
	if collectionID == nil {
		return skipped("collection is not known")
	}

	_, err = p.commands.UpdateCollection(ctx, usecase.UpdateCollectionRequest{
		CollectionID:   *collectionID,
		CuratorID:      curator,
		Name:           rec.Name,
		Description:    rec.Description,
		AccessType:     rec.AccessType,
		Collaborators:  collaborators(rec.Collaborators),
		SkipPublishing: true,
	})
	if err != nil {
		return settle(p.logger, ev, "UpdateCollection", err)
	}
	return applied()
}

func (p *CollectionEventProcessor) delete(ctx context.Context, ev Event, curator domain.CuratorID) Outcome {
	collectionID, err := p.resolver.ResolveCollectionID(ctx, ev.AtURI)
	if err != nil {
		return settle(p.logger, ev, "ResolveCollectionID", err)
	}
	if collectionID == nil {
		return skipped("collection is not known")
	}

	err = p.commands.DeleteCollection(ctx, usecase.DeleteCollectionRequest{
		CollectionID:   *collectionID,
		CuratorID:      curator,
		SkipPublishing: true,
	})
	if err != nil {
		return settle(p.logger, ev, "DeleteCollection", err)
	}
	return applied()
}

// collaborators keeps the entries that are valid DIDs. A nil input stays
// nil so updates leave collaborators untouched.
func collaborators(raw []string) []domain.CuratorID {
	if raw == nil {
		return nil
	}
	out := make([]domain.CuratorID, 0, len(raw))
	for _, s := range raw {
		if id, err := domain.ParseCuratorID(s); err == nil {
			out = append(out, id)
		}
	}
	return out
}
