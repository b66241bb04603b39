package automation

import (
	"errors"
	"math/rand/v2"

	"github.com/foxzi/ofertabot/internal/models"
)

// ErrNoEligibleProduct means the catalog has no active product with a price
var ErrNoEligibleProduct = errors.New("no eligible product")

// Pick is the product chosen for a send and the rotation state after it
type Pick struct {
	ProductID string
	// Index is the position of ProductID in State.ShuffledProductIDs
	Index      int
	State      models.RotationState
	Reshuffled bool
	// Discarded counts ids skipped because they are no longer eligible
	Discarded int
}

// Unconsumed returns the state with the cursor left on the picked product,
// so that the next call offers it again
func (p Pick) Unconsumed() models.RotationState {
	return models.RotationState{ShuffledProductIDs: p.State.ShuffledProductIDs, Cursor: p.Index}
}

// Next returns the next product of the rotation. The input state is not
// modified; the caller persists Pick.State. Ids at the cursor that are no
// longer eligible are discarded without reshuffling. A fresh permutation of
// eligible is generated when the order is empty or exhausted.
func Next(state models.RotationState, eligible []string, rng *rand.Rand) (Pick, error) {
	if len(eligible) == 0 {
		return Pick{State: state}, ErrNoEligibleProduct
	}

	allowed := make(map[string]struct{}, len(eligible))
	for _, id := range eligible {
		allowed[id] = struct{}{}
	}

	seq := state.ShuffledProductIDs
	cursor := state.Cursor
	if cursor < 0 {
		cursor = 0
	}

	var pick Pick
	for pass := 0; pass < 2; pass++ {
		if len(seq) == 0 || cursor >= len(seq) {
			seq = Shuffle(eligible, rng)
			cursor = 0
			pick.Reshuffled = true
		}

		for ; cursor < len(seq); cursor++ {
			id := seq[cursor]
			if _, ok := allowed[id]; !ok {
				pick.Discarded++
				continue
			}
			pick.ProductID = id
			pick.Index = cursor
			pick.State = models.RotationState{ShuffledProductIDs: seq, Cursor: cursor + 1}
			return pick, nil
		}
	}

	// unreachable: a fresh permutation of a non-empty eligible set always yields a pick
	return Pick{State: models.RotationState{ShuffledProductIDs: seq, Cursor: len(seq)}}, ErrNoEligibleProduct
}

// Shuffle returns a uniformly random permutation of ids (Fisher-Yates)
func Shuffle(ids []string, rng *rand.Rand) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	for i := len(out) - 1; i > 0; i-- {
		j := randIntN(rng, i+1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Sample picks one eligible id uniformly at random without touching any
// rotation state. It backs test sends.
func Sample(eligible []string, rng *rand.Rand) (string, error) {
	if len(eligible) == 0 {
		return "", ErrNoEligibleProduct
	}
	return eligible[randIntN(rng, len(eligible))], nil
}

func randIntN(rng *rand.Rand, n int) int {
	if rng == nil {
		return rand.IntN(n)
	}
	return rng.IntN(n)
}
