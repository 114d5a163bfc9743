package bracket

import (
	"math/rand"
	"testing"
)

func TestNew_SizeBounds(t *testing.T) {
	if _, _, err := New(3, false); err != ErrBadSize {
		t.Errorf("Expected ErrBadSize for 3 participants, got %v", err)
	}
	if _, _, err := New(9, false); err != ErrBadSize {
		t.Errorf("Expected ErrBadSize for 9 participants, got %v", err)
	}
}

func TestNew_SlotsDistinct(t *testing.T) {
	for n := 4; n <= MaxSlots; n++ {
		_, slots, err := New(n, false)
		if err != nil {
			t.Fatalf("New(%d) returned error: %v", n, err)
		}
		if len(slots) != n {
			t.Fatalf("Expected %d slot assignments, got %d", n, len(slots))
		}
		seen := make(map[int]bool)
		for _, s := range slots {
			if s < 1 || s > n {
				t.Fatalf("Slot %d out of range 1..%d", s, n)
			}
			if seen[s] {
				t.Fatalf("Slot %d assigned twice", s)
			}
			seen[s] = true
		}
	}
}

// Running a bracket to exhaustion must take exactly n-1 matches, whatever
// the match outcomes, and leave every counter at zero.
func TestBracket_TerminatesInNMinusOneMatches(t *testing.T) {
	for n := 4; n <= MaxSlots; n++ {
		for trial := 0; trial < 50; trial++ {
			b, _, err := New(n, false)
			if err != nil {
				t.Fatalf("New(%d): %v", n, err)
			}

			matches := 0
			for {
				t1, t2, err := b.NextMatch()
				if err == ErrExhausted {
					break
				}
				if err != nil {
					t.Fatalf("NextMatch: %v", err)
				}
				matches++
				if matches > 2*n {
					t.Fatalf("Bracket for %d participants did not terminate", n)
				}

				loser := t1
				if rand.Intn(2) == 0 {
					loser = t2
				}
				b.Eliminate(loser)
			}

			if matches != n-1 {
				t.Errorf("Expected %d matches for %d participants, got %d", n-1, n, matches)
			}
			for slot := 1; slot <= MaxSlots; slot++ {
				if b.Lives[slot] != 0 {
					t.Errorf("Slot %d still has %d lives after exhaustion", slot, b.Lives[slot])
				}
			}
		}
	}
}

func TestNextMatch_PicksMaxThenAscending(t *testing.T) {
	b := &Bracket{}
	b.Lives[2] = 2
	b.Lives[5] = 3
	b.Lives[7] = 3

	t1, t2, err := b.NextMatch()
	if err != nil {
		t.Fatalf("NextMatch: %v", err)
	}
	if t1 != 5 || t2 != 7 {
		t.Errorf("Expected pair (5,7), got (%d,%d)", t1, t2)
	}
	if b.Lives[5] != 2 || b.Lives[7] != 2 {
		t.Errorf("Expected both counters decremented, got %d and %d", b.Lives[5], b.Lives[7])
	}
	if b.Team1 != 5 || b.Team2 != 7 {
		t.Errorf("Expected current pair recorded, got (%d,%d)", b.Team1, b.Team2)
	}
}

func TestNextMatch_SingleHolderPairsWithNext(t *testing.T) {
	b := &Bracket{}
	b.Lives[1] = 1
	b.Lives[3] = 2

	t1, t2, err := b.NextMatch()
	if err != nil {
		t.Fatalf("NextMatch: %v", err)
	}
	if t1 != 1 || t2 != 3 {
		t.Errorf("Expected pair (1,3), got (%d,%d)", t1, t2)
	}
}

func TestUpcoming_DoesNotMutate(t *testing.T) {
	b := &Bracket{}
	b.Lives[1] = 2
	b.Lives[2] = 2

	before := *b
	t1, t2 := b.Upcoming()
	if t1 != 1 || t2 != 2 {
		t.Errorf("Expected upcoming pair (1,2), got (%d,%d)", t1, t2)
	}
	if *b != before {
		t.Error("Upcoming mutated the bracket")
	}
}

func TestDone(t *testing.T) {
	b := &Bracket{}
	if !b.Done() {
		t.Error("Empty bracket should be done")
	}
	b.Lives[1] = 1
	if !b.Done() {
		t.Error("A single remaining slot cannot play; bracket should be done")
	}
	b.Lives[2] = 1
	if b.Done() {
		t.Error("Two playable slots left; bracket should not be done")
	}
}
