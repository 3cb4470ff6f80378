package redis

// Key prefixes for primary entity storage.
const (
	prefixPartner    = "gw:ptn:"
	prefixCredential = "gw:cred:"
	prefixEvent      = "gw:evt:"
	prefixDelivery   = "gw:del:"
	prefixAttempt    = "gw:att:"
)

// Key prefixes for unique indexes.
const (
	uniquePartnerCode  = "gw:u:ptn:code:"
	uniqueCredPublicID = "gw:u:cred:pub:"
	uniqueEventIdem    = "gw:u:evt:idem:"
)

// Key prefixes for sorted set indexes.
const (
	zCredPartner    = "gw:z:cred:ptn:" // + partner ID
	zEventPartner   = "gw:z:evt:ptn:"  // + partner ID
	zDeliveryDue    = "gw:z:del:due"
	zDeliveryEvent  = "gw:z:del:evt:" // + event ID
	zDeliveryPtn    = "gw:z:del:ptn:" // + partner ID
	zAttemptDel     = "gw:z:att:del:" // + delivery ID
	zAttemptPartner = "gw:z:att:ptn:" // + partner ID
)

// Key prefix for per-partner daily request counters.
const prefixRequestCount = "gw:req:" // + partner ID + ":" + YYYY-MM-DD

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}
