package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/plantdesk/core"
)

// Key prefixes for different data types
const (
	conversationPrefix     = "cnv"
	conversationTurnPrefix = "cnvturn"
	conversationRankPrefix = "cnvrank"
	recentPrefix           = "cnvrecent"
	currentConversationKey = "cnvcurrent"
	turnSeqKey             = "cnvturnseq"
	recentSeqKey           = "cnvrecentseq"
	ingestPrefix           = "ingrec"
	ingestContentPrefix    = "ingcon"
	ingestSeqKey           = "ingrecseq"
)

// makeConversationKey generates a key for conversation metadata.
func makeConversationKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", conversationPrefix, id))
}

// makeTurnPrefix generates the prefix shared by all turns of a conversation.
// Format: prefix:conversationID:
func makeTurnPrefix(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", conversationTurnPrefix, id))
}

// makeTurnKey generates a key for one turn.
// Format: prefix:conversationID:seq
func makeTurnKey(id string, seq uint64) []byte {
	return appendUint64(makeTurnPrefix(id), seq)
}

// makeRankKey generates the key holding a conversation's recent-list rank.
func makeRankKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", conversationRankPrefix, id))
}

// makeRecentKey generates a key in the recent list.
// Format: prefix:rank
func makeRecentKey(rank uint64) []byte {
	return appendUint64([]byte(recentPrefix+":"), rank)
}

// makeIngestKey generates a key for an ingest history record.
// Format: prefix:timestamp:seq
func makeIngestKey(at int64, seq uint64) []byte {
	buf := appendUint64([]byte(ingestPrefix+":"), uint64(at))
	return appendUint64(buf, seq)
}

// makeIngestContentKey generates the content-seen marker for an ID.
func makeIngestContentKey(id core.ID) []byte {
	return appendUint64([]byte(ingestContentPrefix+":"), uint64(id))
}

// appendUint64 appends v in BigEndian order so lexicographic sort matches
// numeric order.
func appendUint64(buf []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(buf, v)
}

// seekLast returns a key greater than every key starting with prefix.
func seekLast(prefix []byte) []byte {
	return append(append([]byte{}, prefix...), 0xFF)
}
