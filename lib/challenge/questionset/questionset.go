// Package questionset implements the knowledge-question challenge variant:
// a short sequence of simple questions answered one at a time.
package questionset

import (
	"crypto/rand"
	_ "embed"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/lovebughq/ladybug/lib/challenge"
	"gopkg.in/yaml.v3"
)

// SequenceLength is how many questions one challenge asks.
const SequenceLength = 3

//go:embed questions.yaml
var bankYAML []byte

// Entry is one (question, answer) pair in the bank.
type Entry struct {
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer"`
}

func init() {
	impl, err := New()
	if err != nil {
		panic(fmt.Sprintf("questionset: built-in bank is broken: %v", err))
	}
	challenge.Register("questionset", impl)
}

// New builds an Impl backed by the built-in question bank.
func New() (*Impl, error) {
	var bank []Entry
	if err := yaml.Unmarshal(bankYAML, &bank); err != nil {
		return nil, fmt.Errorf("questionset: can't parse question bank: %w", err)
	}

	return NewWithBank(bank)
}

// NewWithBank builds an Impl from a caller-supplied bank, which must hold
// at least SequenceLength entries.
func NewWithBank(bank []Entry) (*Impl, error) {
	if len(bank) < SequenceLength {
		return nil, fmt.Errorf("questionset: bank has %d entries, need at least %d", len(bank), SequenceLength)
	}

	return &Impl{bank: bank}, nil
}

type Impl struct {
	bank []Entry
}

type display struct {
	Questions []string `json:"questions"`
}

// Generate samples SequenceLength distinct questions from the bank. The
// same question never repeats within one challenge; repetition across
// challenges is allowed.
func (i *Impl) Generate() (*challenge.Puzzle, error) {
	picked, err := sample(len(i.bank), SequenceLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", challenge.ErrGenerationUnavailable, err)
	}

	questions := make([]string, 0, SequenceLength)
	answers := make([]string, 0, SequenceLength)
	for _, idx := range picked {
		questions = append(questions, i.bank[idx].Question)
		answers = append(answers, challenge.Normalize(i.bank[idx].Answer))
	}

	disp, err := json.Marshal(display{Questions: questions})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", challenge.ErrGenerationUnavailable, err)
	}

	return &challenge.Puzzle{
		ID:       uuid.Must(uuid.NewV7()).String(),
		Variant:  "questionset",
		Steps:    SequenceLength,
		Display:  disp,
		Answers:  answers,
		IssuedAt: time.Now(),
	}, nil
}

func (i *Impl) Check(p *challenge.Puzzle, step int, input string) bool {
	if step < 0 || step >= len(p.Answers) {
		return false
	}

	return challenge.Normalize(input) == p.Answers[step]
}

// sample returns k distinct indices in [0, n) via a partial Fisher-Yates
// shuffle driven by crypto/rand.
func sample(n, k int) ([]int, error) {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	for i := range k {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(n-i)))
		if err != nil {
			return nil, err
		}
		swap := i + int(j.Int64())
		indices[i], indices[swap] = indices[swap], indices[i]
	}

	return indices[:k], nil
}
