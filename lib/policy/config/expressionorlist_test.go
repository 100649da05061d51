package config

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestExpressionOrListUnmarshalJSON(t *testing.T) {
	for _, tt := range []struct {
		name  string
		input []byte
		want  ExpressionOrList
		err   error
	}{
		{
			name:  "string",
			input: []byte(`"true"`),
			want:  ExpressionOrList{Expression: "true"},
		},
		{
			name:  "all",
			input: []byte(`{"all":["true","false"]}`),
			want:  ExpressionOrList{All: []string{"true", "false"}},
		},
		{
			name:  "any",
			input: []byte(`{"any":["true","false"]}`),
			want:  ExpressionOrList{Any: []string{"true", "false"}},
		},
		{
			name:  "number",
			input: []byte(`42`),
			err:   ErrExpressionOrListMustBeStringOrObject,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var eol ExpressionOrList
			err := json.Unmarshal(tt.input, &eol)
			if !errors.Is(err, tt.err) {
				t.Fatalf("wanted error %v, got %v", tt.err, err)
			}
			if err != nil {
				return
			}

			if !eol.Equal(&tt.want) {
				t.Errorf("wanted %#v, got %#v", tt.want, eol)
			}
		})
	}
}

func TestExpressionOrListString(t *testing.T) {
	for _, tt := range []struct {
		name  string
		input ExpressionOrList
		want  string
	}{
		{
			name:  "expression",
			input: ExpressionOrList{Expression: "true"},
			want:  "true",
		},
		{
			name:  "all",
			input: ExpressionOrList{All: []string{"true", "false"}},
			want:  "( true ) && ( false )",
		},
		{
			name:  "any one",
			input: ExpressionOrList{Any: []string{"true"}},
			want:  "true",
		},
		{
			name:  "empty",
			input: ExpressionOrList{},
			want:  "",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.input.String(); got != tt.want {
				t.Errorf("wanted %q, got %q", tt.want, got)
			}
		})
	}
}

func TestExpressionOrListValid(t *testing.T) {
	for _, tt := range []struct {
		name  string
		input ExpressionOrList
		err   error
	}{
		{
			name:  "expression",
			input: ExpressionOrList{Expression: "true"},
		},
		{
			name:  "both set",
			input: ExpressionOrList{All: []string{"true"}, Any: []string{"false"}},
			err:   ErrExpressionCantHaveBoth,
		},
		{
			name:  "empty",
			input: ExpressionOrList{},
			err:   ErrExpressionEmpty,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.input.Valid(); !errors.Is(err, tt.err) {
				t.Errorf("wanted error %v, got %v", tt.err, err)
			}
		})
	}
}
