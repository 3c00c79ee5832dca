package match

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// NewRoomID returns `room_<unix-ms>_<hex>`. The format is not a contract.
func NewRoomID() string {
	return fmt.Sprintf("room_%d_%s", time.Now().UnixMilli(), secureRandSuffix(5))
}

// CoinFlip draws a fair bit from crypto/rand.
func CoinFlip() bool {
	n, err := rand.Int(rand.Reader, big.NewInt(2))
	if err != nil {
		return time.Now().UnixNano()&1 == 0
	}
	return n.Int64() == 0
}

// secureRandSuffix returns a hex string of n bytes; falls back to a timestamp when crypto fails.
func secureRandSuffix(n int) string {
	if n <= 0 {
		n = 3
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err == nil {
		return hex.EncodeToString(b)
	}
	return fmt.Sprintf("%x", time.Now().UnixNano()%1_000_000)
}
