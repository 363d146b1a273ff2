// internal/matchmaking/queue.go
package matchmaking

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/thaasbai/thaasbai/internal/protocol"
)

// Entry is one queued session. Digu entries carry the table size the player
// asked for; dhiha-ei matches are always four.
type Entry struct {
	SID        string    `json:"sid"`
	PlayerName string    `json:"playerName"`
	GameType   string    `json:"gameType"`
	Size       int       `json:"size"`
	JoinedAt   time.Time `json:"joinedAt"`
}

type bucketKey struct {
	gameType string
	size     int
}

// Queues holds the per-game-type FIFO matchmaking queues. Digu entries are
// bucketed by requested table size so a 2-player request never drains into
// a 4-player match. The pop step of a drain happens entirely under the
// queue mutex: a session can never be drained into two rooms.
type Queues struct {
	mu      sync.Mutex
	buckets map[bucketKey][]*Entry
}

// New returns empty queues.
func New() *Queues {
	return &Queues{buckets: make(map[bucketKey][]*Entry)}
}

// NormalizeSize clamps a requested digu table size to [2,4]; dhiha-ei is
// always 4.
func NormalizeSize(gameType string, requested int) int {
	if gameType == protocol.GameDhihaEi {
		return 4
	}
	if requested < 2 || requested > 4 {
		return 4
	}
	return requested
}

// Join appends an entry to its bucket, first removing any prior entry for
// the same sid (a session appears in at most one queue). When the bucket
// reaches its target size the head entries are popped and returned for the
// caller to seat into a fresh room; otherwise drained is nil. waiting is
// the bucket length after the operation.
func (q *Queues) Join(e *Entry) (drained []*Entry, waiting int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.removeLocked(e.SID)

	key := bucketKey{gameType: e.GameType, size: e.Size}
	q.buckets[key] = append(q.buckets[key], e)

	bucket := q.buckets[key]
	if len(bucket) >= e.Size {
		drained = bucket[:e.Size]
		q.buckets[key] = bucket[e.Size:]
		log.WithFields(log.Fields{"gameType": e.GameType, "size": e.Size}).
			Info("matchmaking queue drained")
	}
	return drained, len(q.buckets[key])
}

// Leave removes a sid from whatever queue holds it. It is idempotent and
// always succeeds; the return reports whether an entry was present.
func (q *Queues) Leave(sid string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(sid)
}

func (q *Queues) removeLocked(sid string) bool {
	for key, bucket := range q.buckets {
		for i, e := range bucket {
			if e.SID == sid {
				q.buckets[key] = append(bucket[:i], bucket[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Members returns a copy of the bucket for broadcast purposes.
func (q *Queues) Members(gameType string, size int) []*Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	bucket := q.buckets[bucketKey{gameType: gameType, size: size}]
	out := make([]*Entry, len(bucket))
	copy(out, bucket)
	return out
}

// BucketFor returns the queue bucket holding sid, if any.
func (q *Queues) BucketFor(sid string) (gameType string, size int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for key, bucket := range q.buckets {
		for _, e := range bucket {
			if e.SID == sid {
				return key.gameType, key.size, true
			}
		}
	}
	return "", 0, false
}

// Snapshot renders the admin view of all non-empty buckets.
func (q *Queues) Snapshot() []map[string]interface{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(q.buckets))
	for key, bucket := range q.buckets {
		if len(bucket) == 0 {
			continue
		}
		entries := make([]*Entry, len(bucket))
		copy(entries, bucket)
		out = append(out, map[string]interface{}{
			"gameType": key.gameType,
			"size":     key.size,
			"waiting":  len(bucket),
			"entries":  entries,
		})
	}
	return out
}
