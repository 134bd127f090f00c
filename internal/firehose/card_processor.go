package firehose

import (
	"context"
	"strings"

	"github.com/cosmik-network/cardsync/internal/curation"
	"github.com/cosmik-network/cardsync/internal/domain"
	"github.com/cosmik-network/cardsync/internal/logger"
	"github.com/cosmik-network/cardsync/internal/usecase"
)

// Processor turns one event into local changes.
type Processor interface {
	Process(ctx context.Context, ev Event) Outcome
}

// CardEventProcessor replays card record events.
type CardEventProcessor struct {
	commands *usecase.Commands
	resolver *curation.AtURIResolutionService
	logger   logger.Logger
}

// NewCardEventProcessor creates a processor for network.cosmik.card events
func NewCardEventProcessor(commands *usecase.Commands, resolver *curation.AtURIResolutionService, log logger.Logger) *CardEventProcessor {
	return &CardEventProcessor{commands: commands, resolver: resolver, logger: log}
}

// Process dispatches on the event type and the record's card type.
func (p *CardEventProcessor) Process(ctx context.Context, ev Event) Outcome {
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

func (p *CardEventProcessor) create(ctx context.Context, ev Event, curator domain.CuratorID) Outcome {
	var rec CardRecord
	if !decode(ev.Record, &rec) {
		return skipped("malformed card record")
	}
	rid, ok := ev.PublishedRecordID()
	if !ok {
		return skipped("create event without a valid record id")
	}

	cardType, err := domain.ParseCardType(rec.Type)
	if err != nil {
		return skipped("unknown card type " + rec.Type)
	}

	switch cardType {
	case domain.CardTypeURL:
		raw := rec.TargetURL()
		if _, err := domain.ParseURL(raw); err != nil {
			return skipped("card record has no valid url")
		}
		_, err := p.commands.AddURLToLibrary(ctx, usecase.AddURLToLibraryRequest{
			URL:               raw,
			CuratorID:         curator,
			Metadata:          rec.Content.Metadata,
			PublishedRecordID: &rid,
			SkipPublishing:    true,
		})
		if err != nil {
			return settle(p.logger, ev, "AddURLToLibrary", err)
		}
		return applied()

	case domain.CardTypeNote:
		if rec.ParentCard == nil || strings.TrimSpace(rec.ParentCard.URI) == "" {
			return skipped("note record has no parent card")
		}
		text := strings.TrimSpace(rec.Content.Text)
		if text == "" {
			return skipped("note record has no text")
		}
		parentID, err := p.resolver.ResolveCardID(ctx, rec.ParentCard.URI)
		if err != nil {
			return settle(p.logger, ev, "ResolveCardID", err)
		}
		if parentID == nil {
			return skipped("parent card is not known")
		}
		_, err = p.commands.UpdateURLCardAssociations(ctx, usecase.UpdateURLCardAssociationsRequest{
			CardID:                *parentID,
			CuratorID:             curator,
			Note:                  &text,
			NotePublishedRecordID: &rid,
			SkipPublishing:        true,
		})
		if err != nil {
			return settle(p.logger, ev, "UpdateURLCardAssociations", err)
		}
		return applied()

	default:
		return skipped("card type " + string(cardType) + " is not replayed")
	}
}

func (p *CardEventProcessor) update(ctx context.Context, ev Event, curator domain.CuratorID) Outcome {
	var rec CardRecord
	if !decode(ev.Record, &rec) {
		return skipped("malformed card record")
	}
	if cardType, err := domain.ParseCardType(rec.Type); err != nil || cardType != domain.CardTypeNote {
		return skipped("only note text can be updated")
	}

	cardID, err := p.resolver.ResolveCardID(ctx, ev.AtURI)
	if err != nil {
		return settle(p.logger, ev, "ResolveCardID", err)
	}
	if cardID == nil {
		return skipped("card is not known")
	}

	_, err = p.commands.UpdateNoteCard(ctx, usecase.UpdateNoteCardRequest{
		CardID:         *cardID,
		CuratorID:      curator,
		Text:           rec.Content.Text,
		SkipPublishing: true,
	})
	if err != nil {
		return settle(p.logger, ev, "UpdateNoteCard", err)
	}
	return applied()
}

func (p *CardEventProcessor) delete(ctx context.Context, ev Event, curator domain.CuratorID) Outcome {
	cardID, err := p.resolver.ResolveCardID(ctx, ev.AtURI)
	if err != nil {
		return settle(p.logger, ev, "ResolveCardID", err)
	}
	if cardID == nil {
		return skipped("card is not known")
	}

	err = p.commands.RemoveCardFromLibrary(ctx, usecase.RemoveCardFromLibraryRequest{
		CardID:         *cardID,
		CuratorID:      curator,
		SkipPublishing: true,
	})
	if err != nil {
		return settle(p.logger, ev, "RemoveCardFromLibrary", err)
	}
	return applied()
}

// settle converts a failure into a skipped outcome. Domain errors are
// expected on this feed and logged at debug; anything else is logged as
// an error.
func settle(log logger.Logger, ev Event, op string, err error) Outcome {
	fields := []logger.Field{
		logger.String("at_uri", ev.AtURI),
		logger.String("event_type", string(ev.EventType)),
		logger.String("op", op),
		logger.Error(err),
	}
	switch domain.KindOf(err) {
	case "", domain.KindUnexpected:
		log.Error("firehose event failed", fields...)
	default:
		log.Debug("firehose event skipped", fields...)
	}
	return skipped(op + ": " + err.Error())
}
