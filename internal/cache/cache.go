package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores opaque byte payloads with an expiry
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key namespaces a cache key by kind and hashes the content identifying it,
// e.g. Key("layer", path) or Key("receipt", payloadDigest)
func Key(kind string, content []byte) string {
	hash := sha256.Sum256(content)
	return "layerforge:v1:" + kind + ":" + hex.EncodeToString(hash[:])
}
