package textcaptcha

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	var impl Impl

	for range 64 {
		p, err := impl.Generate()
		if err != nil {
			t.Fatal(err)
		}

		if len(p.Answers) != 1 {
			t.Fatalf("wanted 1 answer, got %d", len(p.Answers))
		}

		code := p.Answers[0]
		if len(code) != CodeLength {
			t.Errorf("wanted code of length %d, got %q", CodeLength, code)
		}

		for _, r := range code {
			if !strings.ContainsRune(Alphabet, r) {
				t.Errorf("code %q contains %q which is outside the alphabet", code, r)
			}
		}

		var disp struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal(p.Display, &disp); err != nil {
			t.Fatal(err)
		}
		if !strings.EqualFold(disp.Code, code) {
			t.Errorf("display code %q does not match answer %q", disp.Code, code)
		}
	}
}

func TestCheckCaseInsensitive(t *testing.T) {
	var impl Impl

	p, err := impl.Generate()
	if err != nil {
		t.Fatal(err)
	}
	code := p.Answers[0]

	for _, tt := range []struct {
		name  string
		input string
		want  bool
	}{
		{name: "exact", input: code, want: true},
		{name: "uppercased", input: strings.ToUpper(code), want: true},
		{name: "padded", input: "  " + code + "\n", want: true},
		{name: "wrong", input: code[:CodeLength-1] + "?", want: false},
		{name: "empty", input: "", want: false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := impl.Check(p, 0, tt.input); got != tt.want {
				t.Errorf("Check(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}

	if impl.Check(p, 1, code) {
		t.Error("step 1 of a single-step puzzle should never pass")
	}
}
