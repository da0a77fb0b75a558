package storage

import (
	"encoding/binary"
	"errors"
	"strings"
)

// ErrInvalidSession is returned for session ids that would break the key layout.
var ErrInvalidSession = errors.New("invalid session id")

// keys: cp:<session>:<8-byte tick>
const prefixCheckpoint = "cp:"

func validSession(session string) error {
	if session == "" || strings.ContainsRune(session, ':') {
		return ErrInvalidSession
	}
	return nil
}

// tickKey encodes ts so that byte order matches numeric order, negatives included.
func tickKey(ts int64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(ts)^(1<<63))
	return k[:]
}

func tickFromKey(k []byte) int64 {
	return int64(binary.BigEndian.Uint64(k) ^ (1 << 63))
}

func checkpointPrefix(session string) []byte {
	return []byte(prefixCheckpoint + session + ":")
}

func checkpointKey(session string, ts int64) []byte {
	return append(checkpointPrefix(session), tickKey(ts)...)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
