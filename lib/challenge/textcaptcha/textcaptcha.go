// Package textcaptcha implements the distorted-text challenge variant: the
// client renders a short code and the user types it back.
package textcaptcha

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lovebughq/ladybug/lib/challenge"
)

const (
	// CodeLength is how many characters every captcha code has.
	CodeLength = 5

	// Alphabet is restricted to glyphs that survive visual distortion:
	// no 0/O, 1/I/l, and no digits that read as letters.
	Alphabet = "abcdefghjkmnpqrstuvwxyz23456789"
)

func init() {
	challenge.Register("textcaptcha", &Impl{})
}

type Impl struct{}

type display struct {
	// Code is rendered distorted by the client. Comparison happens server
	// side against the session's stored answer.
	Code string `json:"code"`
}

func (i *Impl) Generate() (*challenge.Puzzle, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(Alphabet)))

	for range CodeLength {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", challenge.ErrGenerationUnavailable, err)
		}
		sb.WriteByte(Alphabet[n.Int64()])
	}

	code := sb.String()

	disp, err := json.Marshal(display{Code: strings.ToUpper(code)})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", challenge.ErrGenerationUnavailable, err)
	}

	return &challenge.Puzzle{
		ID:       uuid.Must(uuid.NewV7()).String(),
		Variant:  "textcaptcha",
		Steps:    1,
		Display:  disp,
		Answers:  []string{code},
		IssuedAt: time.Now(),
	}, nil
}

func (i *Impl) Check(p *challenge.Puzzle, step int, input string) bool {
	if step != 0 || len(p.Answers) != 1 {
		return false
	}

	got := challenge.Normalize(input)
	return subtle.ConstantTimeCompare([]byte(got), []byte(p.Answers[0])) == 1
}
