package publisher

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"strconv"
	"strings"
	"sync"

	"github.com/bluesky-social/indigo/atproto/syntax"

	"github.com/cosmik-network/cardsync/internal/domain"
	"github.com/cosmik-network/cardsync/internal/logger"
)

// Publisher method names, as recorded in Call.Method.
const (
	MethodPublishCard            = "PublishCardToLibrary"
	MethodUnpublishCard          = "UnpublishCardFromLibrary"
	MethodPublishCollection      = "Publish"
	MethodUnpublishCollection    = "Unpublish"
	MethodPublishCollectionAdd   = "PublishCardAddedToCollection"
	MethodUnpublishCollectionAdd = "UnpublishCardAddedToCollection"
)

// Call is one recorded publisher invocation.
type Call struct {
	Method       string
	Curator      domain.CuratorID
	CardID       domain.CardID
	CollectionID domain.CollectionID
	Record       domain.PublishedRecordID
	Parent       *domain.PublishedRecordID
}

// Recorder implements domain.CardPublisher and domain.CollectionPublisher
// without a remote repository. It mints at:// URIs with fresh TIDs,
// remembers every call and can be told to fail a method.
type Recorder struct {
	mu       sync.Mutex
	calls    []Call
	failures map[string]error
	seq      int
	logger   logger.Logger
}

// NewRecorder creates a Recorder that logs each call at debug level. A nil
// log discards the entries.
func NewRecorder(log logger.Logger) *Recorder {
	if log == nil {
		log = logger.Nop()
	}
	return &Recorder{
		failures: make(map[string]error),
		logger:   log,
	}
}

// FailOn makes every following call to method return err. A nil err clears
// the failure.
func (r *Recorder) FailOn(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failures, method)
		return
	}
	r.failures[method] = err
}

// Calls returns a copy of the recorded calls in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallCount returns how many successful calls were made to method. An
// empty method counts every call.
func (r *Recorder) CallCount(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if method == "" {
		return len(r.calls)
	}
	n := 0
	for _, c := range r.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls and configured failures.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.failures = make(map[string]error)
}

func (r *Recorder) PublishCardToLibrary(ctx context.Context, card *domain.Card, curator domain.CuratorID, parentRecord *domain.PublishedRecordID) (domain.PublishedRecordID, error) {
	uri := ""
	if m, ok := card.Membership(curator); ok && m.PublishedRecordID != nil {
		uri = m.PublishedRecordID.URI
	}
	return r.record(Call{
		Method:  MethodPublishCard,
		Curator: curator,
		CardID:  card.ID(),
		Parent:  parentRecord,
	}, string(curator), domain.CardNSID, uri)
}

func (r *Recorder) UnpublishCardFromLibrary(ctx context.Context, record domain.PublishedRecordID, curator domain.CuratorID) error {
	_, err := r.record(Call{Method: MethodUnpublishCard, Curator: curator, Record: record}, "", "", "")
	return err
}

func (r *Recorder) Publish(ctx context.Context, collection *domain.Collection) (domain.PublishedRecordID, error) {
	uri := ""
	if rid := collection.PublishedRecordID(); rid != nil {
		uri = rid.URI
	}
	return r.record(Call{
		Method:       MethodPublishCollection,
		Curator:      collection.AuthorID(),
		CollectionID: collection.ID(),
	}, string(collection.AuthorID()), domain.CollectionNSID, uri)
}

func (r *Recorder) Unpublish(ctx context.Context, record domain.PublishedRecordID) error {
	_, err := r.record(Call{Method: MethodUnpublishCollection, Curator: record.Authority(), Record: record}, "", "", "")
	return err
}

func (r *Recorder) PublishCardAddedToCollection(ctx context.Context, card *domain.Card, collection *domain.Collection, curator domain.CuratorID) (domain.PublishedRecordID, error) {
	return r.record(Call{
		Method:       MethodPublishCollectionAdd,
		Curator:      curator,
		CardID:       card.ID(),
		CollectionID: collection.ID(),
	}, string(curator), domain.CollectionLinkNSID, "")
}

func (r *Recorder) UnpublishCardAddedToCollection(ctx context.Context, record domain.PublishedRecordID) error {
	_, err := r.record(Call{Method: MethodUnpublishCollectionAdd, Curator: record.Authority(), Record: record}, "", "", "")
	return err
}

// record appends c. When nsid is set a record id is minted under repo,
// reusing uri when the record already exists.
func (r *Recorder) record(c Call, repo, nsid, uri string) (domain.PublishedRecordID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.failures[c.Method]; err != nil {
		return domain.PublishedRecordID{}, err
	}

	r.seq++
	if nsid != "" {
		if uri == "" {
			uri = "at://" + repo + "/" + nsid + "/" + syntax.NewTIDNow(uint(r.seq%1024)).String()
		}
		c.Record = domain.PublishedRecordID{URI: uri, CID: fakeCID(uri, r.seq)}
	}
	r.calls = append(r.calls, c)

	r.logger.Debug("dry-run publish",
		logger.String("method", c.Method),
		logger.String("curator", c.Curator.String()),
		logger.String("uri", c.Record.URI))
	return c.Record, nil
}

// fakeCID derives a CID-shaped string that changes on every write.
func fakeCID(uri string, seq int) string {
	sum := sha256.Sum256([]byte(uri + "#" + strconv.Itoa(seq)))
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:])
	return "bafyrei" + strings.ToLower(enc)
}
