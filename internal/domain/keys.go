package domain

// KeyPrefix namespaces every Redis key owned by this service.
const KeyPrefix = "timtro:"

// Listing index and document keys. Documents are written by the external
// indexing ETL under ListingKeyPrefix; this service only reads them.
const (
	ListingIndexName = KeyPrefix + "listings:idx"
	ListingKeyPrefix = KeyPrefix + "listings:"
)

// Popularity counter hashes: recent interaction counts over a trailing
// window, keyed by room id and listing id respectively.
const (
	PopularityRoomKey    = KeyPrefix + "pop:room"
	PopularityListingKey = KeyPrefix + "pop:listing"
)

// ViewLogKey is the capped per-room interaction list.
func ViewLogKey(roomID string) string {
	return KeyPrefix + "views:" + roomID
}
