package redis

import (
	"fmt"
	"strings"
)

const (
	// KeyPrefixCard is the prefix for card snapshot keys
	KeyPrefixCard = "cardsync:card:"
	// KeyPrefixCollection is the prefix for collection snapshot keys
	KeyPrefixCollection = "cardsync:collection:"
	// KeyPrefixURI is the prefix for AT-URI index entries
	KeyPrefixURI = "cardsync:uri:"
	// KeyAllCards is the set of all card IDs
	KeyAllCards = "cardsync:cards:all"
	// KeyAllCollections is the set of all collection IDs
	KeyAllCollections = "cardsync:collections:all"
	// KeyJetstreamCursor holds the last seen Jetstream time_us
	KeyJetstreamCursor = "cardsync:jetstream:cursor"
)

// Values stored under URI index keys.
const (
	refCard           = "card:"
	refCollection     = "collection:"
	refCollectionLink = "link:"
)

// CardKey returns the Redis key for a card by ID
func CardKey(id string) string {
	return KeyPrefixCard + id
}

// CollectionKey returns the Redis key for a collection by ID
func CollectionKey(id string) string {
	return KeyPrefixCollection + id
}

// URIKey returns the index key for a published record URI
func URIKey(uri string) string {
	return KeyPrefixURI + uri
}

// URLCardKey maps a curator and URL to the curator's URL card
func URLCardKey(curator, url string) string {
	return "cardsync:urlcard:" + curator + ":" + url
}

// NoteCardKey maps a curator and URL to the curator's note card
func NoteCardKey(curator, url string) string {
	return "cardsync:notecard:" + curator + ":" + url
}

// CuratorCollectionsKey is the set of collection IDs authored by curator
func CuratorCollectionsKey(curator string) string {
	return "cardsync:curator:" + curator + ":collections"
}

// parseRef splits an index value into its kind prefix and ID.
func parseRef(ref string) (kind, id string, err error) {
	for _, prefix := range []string{refCard, refCollection, refCollectionLink} {
		if strings.HasPrefix(ref, prefix) && len(ref) > len(prefix) {
			return prefix, ref[len(prefix):], nil
		}
	}
	return "", "", fmt.Errorf("invalid uri index value: %s", ref)
}
