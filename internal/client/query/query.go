// Package query filters entity lists with boolean expressions written against
// the stored JSON field names, e.g. `status == "Sem Estoque"` or
// `requesterId == "u1" && priority == "URGENTE"`.
package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Query is a compiled filter expression.
type Query struct {
	src  string
	prog *vm.Program
}

// Compile parses expression. Fields a record does not carry evaluate to nil.
func Compile(expression string) (*Query, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		expression = "true"
	}
	prog, err := expr.Compile(expression, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", expression, err)
	}
	return &Query{src: expression, prog: prog}, nil
}

// String returns the source expression.
func (q *Query) String() string { return q.src }

// Match reports whether v satisfies the query.
func (q *Query) Match(v any) (bool, error) {
	env, err := toEnv(v)
	if err != nil {
		return false, err
	}
	out, err := expr.Run(q.prog, env)
	if err != nil {
		return false, fmt.Errorf("filter %q: %w", q.src, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Filter returns the items matching expression, in order.
func Filter[T any](items []T, expression string) ([]T, error) {
	q, err := Compile(expression)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		ok, err := q.Match(it)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func toEnv(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	env := map[string]any{}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("filter needs an object, got %s", raw)
	}
	return env, nil
}
