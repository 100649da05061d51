package sliderpuzzle

import (
	"fmt"
	"strconv"
	"testing"
)

func TestGenerateRange(t *testing.T) {
	var impl Impl

	for range 128 {
		p, err := impl.Generate()
		if err != nil {
			t.Fatal(err)
		}

		target, err := strconv.Atoi(p.Answers[0])
		if err != nil {
			t.Fatal(err)
		}

		if target < OffsetMin || target > OffsetMax {
			t.Errorf("target %d out of range [%d, %d]", target, OffsetMin, OffsetMax)
		}
	}
}

func TestCheckTolerance(t *testing.T) {
	var impl Impl

	p, err := impl.Generate()
	if err != nil {
		t.Fatal(err)
	}
	target, err := strconv.Atoi(p.Answers[0])
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		delta int
		want  bool
	}{
		{delta: 0, want: true},
		{delta: Tolerance, want: true},
		{delta: -Tolerance, want: true},
		{delta: Tolerance + 1, want: false},
		{delta: -(Tolerance + 1), want: false},
	} {
		t.Run(fmt.Sprintf("delta %d", tt.delta), func(t *testing.T) {
			input := strconv.Itoa(target + tt.delta)
			if got := impl.Check(p, 0, input); got != tt.want {
				t.Errorf("Check(%s) = %v, want %v (target %d)", input, got, tt.want, target)
			}
		})
	}
}

func TestCheckGarbage(t *testing.T) {
	var impl Impl

	p, err := impl.Generate()
	if err != nil {
		t.Fatal(err)
	}

	if impl.Check(p, 0, "not a number") {
		t.Error("non-numeric input should never pass")
	}
	if impl.Check(p, 3, p.Answers[0]) {
		t.Error("out-of-range step should never pass")
	}
}
