package automation

import (
	"errors"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/foxzi/ofertabot/internal/models"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestNext_ExhaustsBeforeRepeating(t *testing.T) {
	eligible := []string{"a", "b", "c", "d", "e"}
	rng := testRand()

	var state models.RotationState
	seen := map[string]int{}

	for i := 0; i < len(eligible); i++ {
		pick, err := Next(state, eligible, rng)
		if err != nil {
			t.Fatalf("Next() call %d error = %v", i, err)
		}
		if i == 0 && !pick.Reshuffled {
			t.Error("first call on empty state should shuffle")
		}
		if i > 0 && pick.Reshuffled {
			t.Errorf("call %d reshuffled before the rotation was exhausted", i)
		}
		seen[pick.ProductID]++
		state = pick.State
	}

	for _, id := range eligible {
		if seen[id] != 1 {
			t.Errorf("product %s returned %d times, want exactly once", id, seen[id])
		}
	}
	if state.Cursor != len(eligible) {
		t.Errorf("cursor = %d, want %d", state.Cursor, len(eligible))
	}

	pick, err := Next(state, eligible, rng)
	if err != nil {
		t.Fatalf("Next() after exhaustion error = %v", err)
	}
	if !pick.Reshuffled {
		t.Error("call N+1 should trigger a reshuffle")
	}
	if pick.State.Cursor != 1 {
		t.Errorf("cursor after reshuffle = %d, want 1", pick.State.Cursor)
	}
}

func TestNext_SkipsIneligibleAtCursor(t *testing.T) {
	state := models.RotationState{ShuffledProductIDs: []string{"gone", "zero", "ok", "later"}, Cursor: 0}
	eligible := []string{"ok", "later"}

	pick, err := Next(state, eligible, testRand())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if pick.ProductID != "ok" {
		t.Errorf("ProductID = %q, want ok", pick.ProductID)
	}
	if pick.Reshuffled {
		t.Error("skipping ineligible ids must not reshuffle")
	}
	if pick.Discarded != 2 {
		t.Errorf("Discarded = %d, want 2", pick.Discarded)
	}
	if pick.Index != 2 || pick.State.Cursor != 3 {
		t.Errorf("Index = %d, Cursor = %d; want 2, 3", pick.Index, pick.State.Cursor)
	}
	if u := pick.Unconsumed(); u.Cursor != 2 {
		t.Errorf("Unconsumed().Cursor = %d, want 2", u.Cursor)
	}

	// input state is left as it was
	if state.Cursor != 0 || state.ShuffledProductIDs[0] != "gone" {
		t.Errorf("input state mutated: %+v", state)
	}
}

func TestNext_StaleTailReshuffles(t *testing.T) {
	state := models.RotationState{ShuffledProductIDs: []string{"a", "gone1", "gone2"}, Cursor: 1}

	pick, err := Next(state, []string{"a", "b"}, testRand())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !pick.Reshuffled {
		t.Error("a tail of ineligible ids should lead to a fresh permutation")
	}
	if pick.ProductID != "a" && pick.ProductID != "b" {
		t.Errorf("ProductID = %q", pick.ProductID)
	}
	got := append([]string(nil), pick.State.ShuffledProductIDs...)
	sort.Strings(got)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("new permutation = %v", pick.State.ShuffledProductIDs)
	}
}

func TestNext_NoEligible(t *testing.T) {
	state := models.RotationState{ShuffledProductIDs: []string{"a"}, Cursor: 0}

	_, err := Next(state, nil, testRand())
	if !errors.Is(err, ErrNoEligibleProduct) {
		t.Errorf("Next() error = %v, want ErrNoEligibleProduct", err)
	}
}

func TestNext_NeverReturnsIneligible(t *testing.T) {
	rng := testRand()
	eligible := []string{"p1", "p3"}
	state := models.RotationState{ShuffledProductIDs: []string{"p2", "p1", "p4", "p3", "p2"}}

	for i := 0; i < 20; i++ {
		pick, err := Next(state, eligible, rng)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if pick.ProductID != "p1" && pick.ProductID != "p3" {
			t.Fatalf("Next() returned ineligible product %q", pick.ProductID)
		}
		state = pick.State
	}
}

func TestShuffle_IsPermutation(t *testing.T) {
	in := []string{"a", "b", "c", "d", "e", "f"}
	out := Shuffle(in, testRand())

	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	sorted := append([]string(nil), out...)
	sort.Strings(sorted)
	for i := range in {
		if sorted[i] != in[i] {
			t.Fatalf("Shuffle() = %v is not a permutation of %v", out, in)
		}
	}
	if in[0] != "a" || in[5] != "f" {
		t.Error("Shuffle() modified its input")
	}
}

func TestSample(t *testing.T) {
	if _, err := Sample(nil, testRand()); !errors.Is(err, ErrNoEligibleProduct) {
		t.Errorf("Sample(nil) error = %v", err)
	}

	rng := testRand()
	counts := map[string]int{}
	for i := 0; i < 300; i++ {
		id, err := Sample([]string{"x", "y", "z"}, rng)
		if err != nil {
			t.Fatalf("Sample() error = %v", err)
		}
		counts[id]++
	}
	for _, id := range []string{"x", "y", "z"} {
		if counts[id] == 0 {
			t.Errorf("Sample() never returned %s", id)
		}
	}
}
