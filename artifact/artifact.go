// Package artifact caches expensive generated artifacts with a
// cache-aside layout: the local key-value store is a volatile
// accelerator, the remote store is the durable source of truth. Every
// local miss or local failure falls through to the remote store, so
// the cache is never required for correctness.
package artifact

import (
	"fmt"
	"strings"
)

// DefaultNamespace prefixes cache keys when none is configured.
const DefaultNamespace = "artifact"

// Key identifies a cached artifact by namespace, topic, and variant.
// Topic normalization lower-cases and trims, so two requests differing
// only in case or surrounding whitespace share one entry.
type Key struct {
	Namespace string
	Topic     string
	Variant   string
}

// Normalize returns the key with the topic normalized.
func (k Key) Normalize() Key {
	k.Topic = strings.ToLower(strings.TrimSpace(k.Topic))
	return k
}

// String renders the storage key.
func (k Key) String() string {
	n := k.Normalize()
	return fmt.Sprintf("%s:%s:%s", n.Namespace, n.Topic, n.Variant)
}
