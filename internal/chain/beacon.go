package chain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"time"

	"dicehouse/internal/game"
)

const BeaconSize = 32

// RandomBeacon draws fresh bytes from the operating system for every block.
func RandomBeacon() game.EntropySource {
	return func() []byte {
		b := make([]byte, BeaconSize)
		if _, err := rand.Read(b); err != nil {
			panic("chain: system randomness unavailable: " + err.Error())
		}
		return b
	}
}

// blockEntropy binds a block's random value to its position in the chain:
// sha256(prevHash || u64be(height) || u64be(unixNano) || beacon).
func blockEntropy(prevHash []byte, height uint64, t time.Time, beacon []byte) []byte {
	h := sha256.New()
	h.Write(prevHash)
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], height)
	h.Write(n[:])
	binary.BigEndian.PutUint64(n[:], uint64(t.UnixNano()))
	h.Write(n[:])
	h.Write(beacon)
	return h.Sum(nil)
}

// blockHash chains each block to its predecessor.
func blockHash(prevHash, entropy []byte) []byte {
	h := sha256.New()
	h.Write(prevHash)
	h.Write(entropy)
	return h.Sum(nil)
}
