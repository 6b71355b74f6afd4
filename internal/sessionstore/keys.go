package sessionstore

import "time"

// Key templates, namespaced the way the wider retrieval pack's Redis
// services (e.g. user:%d:session:%s) key their own caches.
const (
	KeySessionStatus = "blackjack:session:%s:status"
)

// TTLSessionStatus bounds how long a cached status snapshot survives
// without a fresh write. The registry rewrites the entry on every successful
// session_status read, not on other operations; the TTL is a ceiling on
// staleness if a session actor dies without ever calling EndSession.
const TTLSessionStatus = 10 * time.Minute
