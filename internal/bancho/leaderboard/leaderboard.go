// Package leaderboard implements the per-mode ranked score index:
// upsert, rank lookup, and removal, all serialised by one mutex per
// mode.
package leaderboard

import (
	"sync"

	"github.com/onecho/banchod/internal/bancho/model"
)

type entry struct {
	userID int32
	score  uint64
	seq    uint64 // insertion order, for stable tie-breaking
}

// Index is one mode's ranked list plus a position lookup map.
type Index struct {
	mu       sync.Mutex
	entries  []entry
	position map[int32]int // user_id -> 0-based position in entries
	nextSeq  uint64
}

func NewIndex() *Index {
	return &Index{position: make(map[int32]int)}
}

// Indexes holds one Index per game mode.
type Indexes struct {
	byMode map[model.Mode]*Index
}

func NewIndexes() *Indexes {
	idx := &Indexes{byMode: make(map[model.Mode]*Index)}
	for _, m := range model.AllModes {
		idx.byMode[m] = NewIndex()
	}
	return idx
}

func (ix *Indexes) For(mode model.Mode) *Index {
	return ix.byMode[mode]
}

// Upsert inserts or updates uid's score and re-sorts. Ties are broken
// by insertion order: earlier insertions keep the lower rank.
func (i *Index) Upsert(uid int32, score uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if pos, ok := i.position[uid]; ok {
		i.entries[pos].score = score
	} else {
		i.entries = append(i.entries, entry{userID: uid, score: score, seq: i.nextSeq})
		i.nextSeq++
	}
	i.resort()
}

// Rank returns the 1-based rank of uid, or 0 if uid is not present.
func (i *Index) Rank(uid int32) int32 {
	i.mu.Lock()
	defer i.mu.Unlock()
	pos, ok := i.position[uid]
	if !ok {
		return 0
	}
	return int32(pos + 1)
}

// Entry is a read-only view of one ranked row, used by admin listing.
type Entry struct {
	UserID int32
	Score  uint64
	Rank   int32
}

// Top returns the first n entries in rank order, or fewer if the
// index holds less than n users.
func (i *Index) Top(n int) []Entry {
	i.mu.Lock()
	defer i.mu.Unlock()
	if n > len(i.entries) {
		n = len(i.entries)
	}
	out := make([]Entry, n)
	for pos := 0; pos < n; pos++ {
		e := i.entries[pos]
		out[pos] = Entry{UserID: e.userID, Score: e.score, Rank: int32(pos + 1)}
	}
	return out
}

// Remove deletes uid from the index.
func (i *Index) Remove(uid int32) {
	i.mu.Lock()
	defer i.mu.Unlock()
	pos, ok := i.position[uid]
	if !ok {
		return
	}
	i.entries = append(i.entries[:pos], i.entries[pos+1:]...)
	i.resort()
}

// resort re-sorts by score desc, then insertion order asc, and
// rebuilds the position map. Insertion sort: O(N) when a single entry
// moves in an otherwise sorted slice, O(N^2) in the worst case.
func (i *Index) resort() {
	entries := i.entries
	for a := 1; a < len(entries); a++ {
		v := entries[a]
		b := a - 1
		for b >= 0 && less(v, entries[b]) {
			entries[b+1] = entries[b]
			b--
		}
		entries[b+1] = v
	}
	i.position = make(map[int32]int, len(entries))
	for pos, e := range entries {
		i.position[e.userID] = pos
	}
}

// less reports whether a ranks ahead of b: higher score first, and on
// a tie the earlier insertion (lower seq) ranks first.
func less(a, b entry) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.seq < b.seq
}
