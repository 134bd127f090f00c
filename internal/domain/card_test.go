package domain

import (
	"testing"
	"time"
)

const (
	alice CuratorID = "did:plc:alice"
	bob   CuratorID = "did:plc:bob"
)

func mustURLCard(t *testing.T, raw string) *Card {
	t.Helper()
	content, err := NewURLContent(raw, &URLMetadata{Title: "t"})
	if err != nil {
		t.Fatalf("NewURLContent() error = %v", err)
	}
	card, err := NewCard(CardParams{CuratorID: alice, Content: content})
	if err != nil {
		t.Fatalf("NewCard() error = %v", err)
	}
	return card
}

func mustRID(t *testing.T, uri, cid string) PublishedRecordID {
	t.Helper()
	rid, err := NewPublishedRecordID(uri, cid)
	if err != nil {
		t.Fatalf("NewPublishedRecordID() error = %v", err)
	}
	return rid
}

func TestNewCardShape(t *testing.T) {
	parent := NewCardID()
	u := URL("https://example.com/a")
	other := URL("https://example.com/b")
	urlContent := URLContent{URL: u}
	note := NoteContent{Text: "hi"}
	highlight := HighlightContent{Text: "quoted"}

	tests := []struct {
		name    string
		params  CardParams
		wantErr bool
	}{
		{name: "url card", params: CardParams{CuratorID: alice, Content: urlContent}},
		{name: "url card with parent", params: CardParams{CuratorID: alice, Content: urlContent, ParentCardID: &parent}, wantErr: true},
		{name: "url card with mismatched url", params: CardParams{CuratorID: alice, Content: urlContent, URL: &other}, wantErr: true},
		{name: "url card without url", params: CardParams{CuratorID: alice, Content: URLContent{}}, wantErr: true},
		{name: "note alone", params: CardParams{CuratorID: alice, Content: note}},
		{name: "note on url card", params: CardParams{CuratorID: alice, Content: note, ParentCardID: &parent, URL: &u}},
		{name: "highlight without parent", params: CardParams{CuratorID: alice, Content: highlight}, wantErr: true},
		{name: "highlight with parent", params: CardParams{CuratorID: alice, Content: highlight, ParentCardID: &parent}},
		{name: "missing curator", params: CardParams{Content: note}, wantErr: true},
		{name: "missing content", params: CardParams{CuratorID: alice}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card, err := NewCard(tt.params)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewCard() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !IsKind(err, KindValidation) {
					t.Errorf("NewCard() error kind = %q, want validation", KindOf(err))
				}
				return
			}
			if card.LibraryCount() != 0 {
				t.Errorf("new card LibraryCount = %d, want 0", card.LibraryCount())
			}
			if card.Type() != tt.params.Content.Type() {
				t.Errorf("Type() = %s, want %s", card.Type(), tt.params.Content.Type())
			}
		})
	}
}

func TestCardURLComesFromContent(t *testing.T) {
	card := mustURLCard(t, "https://example.com/a")
	if card.URL() == nil || *card.URL() != "https://example.com/a" {
		t.Errorf("URL() = %v, want the content url", card.URL())
	}
	if !card.IsURLCard() || card.IsNoteCard() {
		t.Error("expected a url card")
	}
}

func TestCardLibraryMemberships(t *testing.T) {
	card := mustURLCard(t, "https://example.com/a")

	if err := card.AddToLibrary(alice, time.Time{}); err != nil {
		t.Fatalf("AddToLibrary(alice) error = %v", err)
	}
	if err := card.AddToLibrary(bob, time.Now()); err != nil {
		t.Fatalf("AddToLibrary(bob) error = %v", err)
	}
	if err := card.AddToLibrary(alice, time.Now()); !IsKind(err, KindValidation) {
		t.Errorf("duplicate AddToLibrary error = %v, want validation", err)
	}
	if card.LibraryCount() != 2 || len(card.LibraryMemberships()) != 2 {
		t.Fatalf("LibraryCount = %d, want 2", card.LibraryCount())
	}

	if err := card.RemoveFromLibrary(alice); err != nil {
		t.Fatalf("RemoveFromLibrary(alice) error = %v", err)
	}
	if card.IsInLibrary(alice) || !card.IsInLibrary(bob) {
		t.Error("membership set is wrong after removal")
	}
	if card.LibraryCount() != 1 {
		t.Errorf("LibraryCount = %d, want 1", card.LibraryCount())
	}
	if err := card.RemoveFromLibrary(alice); !IsKind(err, KindValidation) {
		t.Errorf("second RemoveFromLibrary error = %v, want validation", err)
	}

	events := card.PullEvents()
	if len(events) != 3 {
		t.Fatalf("PullEvents() returned %d events, want 3", len(events))
	}
	if events[2].EventName() != "card.removed_from_library" {
		t.Errorf("last event = %s", events[2].EventName())
	}
	if len(card.PullEvents()) != 0 {
		t.Error("PullEvents() should clear pending events")
	}
}

func TestCardMarkMembershipPublished(t *testing.T) {
	card := mustURLCard(t, "https://example.com/a")
	first := mustRID(t, "at://did:plc:alice/network.cosmik.card/3kaaa", "cid1")

	if err := card.MarkMembershipPublished(alice, first); !IsKind(err, KindValidation) {
		t.Fatalf("stamping without membership error = %v, want validation", err)
	}

	_ = card.AddToLibrary(alice, time.Now())
	_ = card.AddToLibrary(bob, time.Now())

	if err := card.MarkMembershipPublished(alice, first); err != nil {
		t.Fatalf("MarkMembershipPublished() error = %v", err)
	}
	if got := card.PublishedRecordID(); got == nil || !got.Equal(first) {
		t.Fatalf("card-level record = %v, want the first stamp", got)
	}

	// CID refresh keeps the URI
	refreshed := mustRID(t, first.URI, "cid2")
	if err := card.MarkMembershipPublished(alice, refreshed); err != nil {
		t.Fatalf("refresh error = %v", err)
	}
	if got := card.PublishedRecordID(); got.CID != "cid2" {
		t.Errorf("card-level CID = %s, want cid2", got.CID)
	}

	// A different URI is rejected
	moved := mustRID(t, "at://did:plc:alice/network.cosmik.card/3kbbb", "cid3")
	if err := card.MarkMembershipPublished(alice, moved); !IsKind(err, KindValidation) {
		t.Errorf("URI change error = %v, want validation", err)
	}

	// Another curator's stamp does not replace the card-level record
	bobs := mustRID(t, "at://did:plc:bob/network.cosmik.card/3kccc", "cid4")
	if err := card.MarkMembershipPublished(bob, bobs); err != nil {
		t.Fatalf("bob stamp error = %v", err)
	}
	if got := card.PublishedRecordID(); got.URI != first.URI {
		t.Errorf("card-level URI = %s, want %s", got.URI, first.URI)
	}
	m, ok := card.Membership(bob)
	if !ok || m.PublishedRecordID == nil || m.PublishedRecordID.URI != bobs.URI {
		t.Errorf("bob membership = %+v", m)
	}
}

func TestCardUpdateContent(t *testing.T) {
	card := mustURLCard(t, "https://example.com/a")

	tests := []struct {
		name    string
		content CardContent
		wantErr bool
	}{
		{name: "same url new metadata", content: URLContent{URL: "https://example.com/a", Metadata: &URLMetadata{Title: "new"}}},
		{name: "different url", content: URLContent{URL: "https://example.com/b"}, wantErr: true},
		{name: "different type", content: NoteContent{Text: "x"}, wantErr: true},
		{name: "nil", content: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := card.UpdateContent(tt.content)
			if (err != nil) != tt.wantErr {
				t.Errorf("UpdateContent() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if md := card.Content().(URLContent).Metadata; md == nil || md.Title != "new" {
		t.Errorf("metadata = %+v, want title new", md)
	}
}

func TestCardContentIsCopied(t *testing.T) {
	card := mustURLCard(t, "https://example.com/a")
	content := card.Content().(URLContent)
	content.Metadata.Title = "mutated"

	if card.Content().(URLContent).Metadata.Title != "t" {
		t.Error("mutating returned content changed the card")
	}
}

func TestCardStateRoundTrip(t *testing.T) {
	card := mustURLCard(t, "https://example.com/a")
	_ = card.AddToLibrary(alice, time.Now())
	_ = card.MarkMembershipPublished(alice, mustRID(t, "at://did:plc:alice/network.cosmik.card/3kaaa", "cid1"))

	restored, err := RestoreCard(card.State())
	if err != nil {
		t.Fatalf("RestoreCard() error = %v", err)
	}
	if restored.ID() != card.ID() || restored.LibraryCount() != 1 {
		t.Errorf("restored card = %+v", restored.State())
	}
	if m, ok := restored.Membership(alice); !ok || m.PublishedRecordID == nil {
		t.Error("restored membership lost its record")
	}
	if len(restored.PullEvents()) != 0 {
		t.Error("restored card should have no pending events")
	}
}

func TestRestoreCardRejectsBrokenSnapshots(t *testing.T) {
	card := mustURLCard(t, "https://example.com/a")
	_ = card.AddToLibrary(alice, time.Now())
	base := card.State()

	tests := []struct {
		name   string
		mutate func(s *CardState)
	}{
		{name: "count mismatch", mutate: func(s *CardState) { s.LibraryCount = 5 }},
		{name: "duplicate membership", mutate: func(s *CardState) {
			s.Memberships = append(s.Memberships, s.Memberships[0])
			s.LibraryCount = 2
		}},
		{name: "unknown type", mutate: func(s *CardState) { s.Type = "VIDEO" }},
		{name: "url card without url", mutate: func(s *CardState) { s.URL = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			s.Memberships = append([]LibraryMembership(nil), base.Memberships...)
			tt.mutate(&s)
			if _, err := RestoreCard(s); err == nil {
				t.Error("RestoreCard() should fail")
			}
		})
	}
}
