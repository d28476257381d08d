package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// signHMACSHA256 signs payload with secret and returns the lowercase hex
// digest both header families expect.
func signHMACSHA256(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// clockSync caches the offset between local time and the exchange's
// serverTime so every signed request can stamp itself without a network
// round trip, and lets a client resynchronize on demand after an
// AUTH_104/AUTH_105 rejection.
type clockSync struct {
	mu     sync.Mutex
	offset time.Duration // serverTime - localTime, at last sync
	synced bool
}

// now returns the current timestamp adjusted by the last known offset.
func (c *clockSync) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Add(c.offset)
}

// apply records a fresh serverTime reading.
func (c *clockSync) apply(serverTimeMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	server := time.UnixMilli(serverTimeMs)
	c.offset = time.Until(server)
	c.synced = true
}

func (c *clockSync) nowMillis() int64 {
	return c.now().UnixMilli()
}
