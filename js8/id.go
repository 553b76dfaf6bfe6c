package js8

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"io"
	"sync/atomic"
	"time"
)

const messageIDSize = 16

var idCounter atomic.Uint64

// GenerateMessageID returns a random URL-safe message ID built from 16
// random bytes.
//
// Message IDs only identify messages inside this process; they are never
// placed on the wire.
func GenerateMessageID() string {
	var buf [messageIDSize]byte
	if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
		// The system random source is unavailable, fall back to a
		// time-seeded counter to keep IDs unique within the process.
		binary.BigEndian.PutUint64(buf[:8], uint64(time.Now().UnixNano())) //nolint:gosec
		binary.BigEndian.PutUint64(buf[8:], idCounter.Add(1))
	}

	return base64.RawURLEncoding.EncodeToString(buf[:])
}
