// bracket/bracket.go
package bracket

import (
	"errors"
	"math/rand"
)

// MaxSlots is the largest bracket the engine runs.
const MaxSlots = 8

var (
	ErrBadSize   = errors.New("bracket size must be between 4 and 8")
	ErrExhausted = errors.New("bracket exhausted")
)

// Bracket tracks one tournament's progress. Lives is indexed by team slot
// (1-based); a slot's counter is the number of matches it is still scheduled
// to play. Team1/Team2 hold the currently contested pair.
type Bracket struct {
	Lives   [MaxSlots + 1]int
	Team1   int
	Team2   int
	Offline bool
	Round   int
}

// New seeds a bracket for n participants. Each participant is handed a
// random unused slot 1..n; the returned slice maps participant index to
// slot. Slots are seeded so that a full run plays exactly n-1 matches, the
// single-elimination-with-byes count: the first 2n-8 slots owe three
// matches, the rest (the bye slots) two.
func New(n int, offline bool) (*Bracket, []int, error) {
	if n < 4 || n > MaxSlots {
		return nil, nil, ErrBadSize
	}

	b := &Bracket{Offline: offline}
	for slot := 1; slot <= n; slot++ {
		if slot <= 2*n-MaxSlots {
			b.Lives[slot] = 3
		} else {
			b.Lives[slot] = 2
		}
	}

	slots := rand.Perm(n)
	for i := range slots {
		slots[i]++ // 1-based
	}
	return b, slots, nil
}

// NextMatch schedules the next pair: the two lowest-numbered slots holding
// the maximum remaining counter. Both counters are decremented. Returns
// ErrExhausted when fewer than two slots can still play; any straggler
// counter is zeroed so Done holds afterwards.
func (b *Bracket) NextMatch() (int, int, error) {
	first, second := 0, 0
	for slot := 1; slot <= MaxSlots; slot++ {
		if b.Lives[slot] <= 0 {
			continue
		}
		switch {
		case first == 0 || b.Lives[slot] > b.Lives[first]:
			first, second = slot, first
		case second == 0 || b.Lives[slot] > b.Lives[second]:
			second = slot
		}
	}

	if second == 0 {
		if first != 0 {
			b.Lives[first] = 0
		}
		b.Team1, b.Team2 = 0, 0
		return 0, 0, ErrExhausted
	}
	if first > second {
		first, second = second, first
	}

	b.Lives[first]--
	b.Lives[second]--
	b.Team1, b.Team2 = first, second
	b.Round++
	return first, second, nil
}

// Upcoming peeks the pair NextMatch would schedule without mutating the
// bracket. Used for the one-shot next-match announcement.
func (b *Bracket) Upcoming() (int, int) {
	peek := *b
	t1, t2, err := peek.NextMatch()
	if err != nil {
		return 0, 0
	}
	return t1, t2
}

// Eliminate zeroes the loser's counter, removing the slot from selection.
func (b *Bracket) Eliminate(slot int) {
	if slot >= 1 && slot <= MaxSlots {
		b.Lives[slot] = 0
	}
}

// Done reports whether no slot can play any further match.
func (b *Bracket) Done() bool {
	positive := 0
	for slot := 1; slot <= MaxSlots; slot++ {
		if b.Lives[slot] > 0 {
			positive++
		}
	}
	return positive < 2
}
