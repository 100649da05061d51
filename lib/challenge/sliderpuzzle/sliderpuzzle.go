// Package sliderpuzzle implements the slider-alignment challenge variant:
// the client draws a track with a gap and the user drags a piece into it.
// The drag dynamics are the client's own bot signal; this package only owns
// the target offset and the tolerance check.
package sliderpuzzle

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lovebughq/ladybug/lib/challenge"
)

const (
	// OffsetMin and OffsetMax bound the gap position, in percent of track
	// width. The margins keep the gap from hugging either edge.
	OffsetMin = 20
	OffsetMax = 80

	// Tolerance is how far off the submitted offset may be, in absolute
	// units on the same 0-100 scale.
	Tolerance = 3
)

func init() {
	challenge.Register("sliderpuzzle", &Impl{})
}

type Impl struct{}

type display struct {
	TrackMin int `json:"trackMin"`
	TrackMax int `json:"trackMax"`
	// Gap is where the client renders the cutout the user drags toward.
	Gap int `json:"gap"`
}

func (i *Impl) Generate() (*challenge.Puzzle, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(OffsetMax-OffsetMin+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", challenge.ErrGenerationUnavailable, err)
	}
	target := OffsetMin + int(n.Int64())

	disp, err := json.Marshal(display{TrackMin: 0, TrackMax: 100, Gap: target})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", challenge.ErrGenerationUnavailable, err)
	}

	return &challenge.Puzzle{
		ID:       uuid.Must(uuid.NewV7()).String(),
		Variant:  "sliderpuzzle",
		Steps:    1,
		Display:  disp,
		Answers:  []string{strconv.Itoa(target)},
		IssuedAt: time.Now(),
	}, nil
}

func (i *Impl) Check(p *challenge.Puzzle, step int, input string) bool {
	if step != 0 || len(p.Answers) != 1 {
		return false
	}

	target, err := strconv.ParseFloat(p.Answers[0], 64)
	if err != nil {
		return false
	}

	got, err := strconv.ParseFloat(challenge.Normalize(input), 64)
	if err != nil {
		return false
	}

	return math.Abs(got-target) <= Tolerance
}
