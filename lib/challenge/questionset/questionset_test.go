package questionset

import (
	"encoding/json"
	"testing"

	"github.com/lovebughq/ladybug/lib/challenge"
)

func testBank() []Entry {
	return []Entry{
		{Question: "What color is the sky on a clear day?", Answer: "Blue"},
		{Question: "What do bees make?", Answer: "honey"},
		{Question: "What is 2 + 3?", Answer: "5"},
		{Question: "What season comes after winter?", Answer: "spring"},
	}
}

func TestNewWithBankTooSmall(t *testing.T) {
	if _, err := NewWithBank(testBank()[:2]); err == nil {
		t.Error("wanted construction with an undersized bank to fail")
	}
}

func TestGenerate(t *testing.T) {
	impl, err := NewWithBank(testBank())
	if err != nil {
		t.Fatal(err)
	}

	p, err := impl.Generate()
	if err != nil {
		t.Fatal(err)
	}

	if p.Steps != SequenceLength {
		t.Errorf("wanted %d steps, got %d", SequenceLength, p.Steps)
	}
	if len(p.Answers) != SequenceLength {
		t.Fatalf("wanted %d answers, got %d", SequenceLength, len(p.Answers))
	}

	var disp struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal(p.Display, &disp); err != nil {
		t.Fatal(err)
	}
	if len(disp.Questions) != SequenceLength {
		t.Fatalf("wanted %d questions in display, got %d", SequenceLength, len(disp.Questions))
	}

	seen := map[string]bool{}
	for _, q := range disp.Questions {
		if seen[q] {
			t.Errorf("question %q repeats within one challenge", q)
		}
		seen[q] = true
	}

	for _, a := range p.Answers {
		if a != challenge.Normalize(a) {
			t.Errorf("answer %q was not normalized", a)
		}
	}
}

func TestCheck(t *testing.T) {
	impl, err := NewWithBank(testBank())
	if err != nil {
		t.Fatal(err)
	}

	p, err := impl.Generate()
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		name  string
		step  int
		input string
		want  bool
	}{
		{name: "correct first step", step: 0, input: p.Answers[0], want: true},
		{name: "case and whitespace ignored", step: 0, input: "  " + p.Answers[0] + " ", want: true},
		{name: "wrong answer", step: 0, input: "definitely wrong", want: false},
		{name: "right answer wrong step", step: 1, input: p.Answers[0], want: p.Answers[0] == p.Answers[1]},
		{name: "negative step", step: -1, input: p.Answers[0], want: false},
		{name: "step past the end", step: SequenceLength, input: p.Answers[0], want: false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := impl.Check(p, tt.step, tt.input); got != tt.want {
				t.Errorf("Check(step=%d, %q) = %v, want %v", tt.step, tt.input, got, tt.want)
			}
		})
	}
}

func TestBuiltinBankParses(t *testing.T) {
	impl, err := New()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := impl.Generate(); err != nil {
		t.Fatal(err)
	}
}
