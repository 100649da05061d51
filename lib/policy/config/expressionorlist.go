package config

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"
)

var (
	ErrExpressionOrListMustBeStringOrObject = errors.New("config: this must be a string or an object")
	ErrExpressionEmpty                      = errors.New("config: this expression is empty")
	ErrExpressionCantHaveBoth               = errors.New("config: expression block can't contain multiple expression types")
)

type ExpressionOrList struct {
	Expression string   `json:"-"`
	All        []string `json:"all"`
	Any        []string `json:"any"`
}

func (eol ExpressionOrList) Equal(rhs *ExpressionOrList) bool {
	if eol.Expression != rhs.Expression {
		return false
	}

	if !slices.Equal(eol.All, rhs.All) {
		return false
	}

	if !slices.Equal(eol.Any, rhs.Any) {
		return false
	}

	return true
}

// String renders the block back to a single CEL expression.
func (eol *ExpressionOrList) String() string {
	switch {
	case eol.Expression != "":
		return eol.Expression
	case len(eol.All) != 0:
		return joinClauses(eol.All, "&&")
	case len(eol.Any) != 0:
		return joinClauses(eol.Any, "||")
	}

	return ""
}

func joinClauses(clauses []string, operator string) string {
	if len(clauses) == 1 {
		return clauses[0]
	}

	wrapped := make([]string, len(clauses))
	for i, clause := range clauses {
		wrapped[i] = "( " + clause + " )"
	}

	return strings.Join(wrapped, " "+operator+" ")
}

func (eol *ExpressionOrList) UnmarshalJSON(data []byte) error {
	switch string(data[0]) {
	case `"`: // string
		return json.Unmarshal(data, &eol.Expression)
	case "{": // object
		type RawExpressionOrList ExpressionOrList
		var val RawExpressionOrList
		if err := json.Unmarshal(data, &val); err != nil {
			return err
		}
		eol.All = val.All
		eol.Any = val.Any

		return nil
	}

	return ErrExpressionOrListMustBeStringOrObject
}

func (eol *ExpressionOrList) Valid() error {
	if len(eol.All) != 0 && len(eol.Any) != 0 {
		return ErrExpressionCantHaveBoth
	}

	if eol.String() == "" {
		return ErrExpressionEmpty
	}

	return nil
}
