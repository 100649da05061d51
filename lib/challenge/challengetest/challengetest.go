// Package challengetest has helpers for testing code that consumes
// challenge puzzles.
package challengetest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lovebughq/ladybug/lib/challenge"
)

// Static is a deterministic single-step variant whose answer is always
// known to the test.
type Static struct {
	Answer string
}

func (s Static) Generate() (*challenge.Puzzle, error) {
	disp, err := json.Marshal(map[string]string{"hint": "static puzzle for tests"})
	if err != nil {
		return nil, err
	}

	return &challenge.Puzzle{
		ID:       uuid.Must(uuid.NewV7()).String(),
		Variant:  "static",
		Steps:    1,
		Display:  disp,
		Answers:  []string{challenge.Normalize(s.Answer)},
		IssuedAt: time.Now(),
	}, nil
}

func (s Static) Check(p *challenge.Puzzle, step int, input string) bool {
	return step == 0 && challenge.Normalize(input) == p.Answers[0]
}

// New returns a fresh puzzle from any registered variant, failing the test
// if generation does.
func New(t *testing.T, variant string) *challenge.Puzzle {
	t.Helper()

	impl, ok := challenge.Get(variant)
	if !ok {
		t.Fatalf("variant %q is not registered", variant)
	}

	p, err := impl.Generate()
	if err != nil {
		t.Fatal(err)
	}

	return p
}
