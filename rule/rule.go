// Package rule implements the pure, side-effect-free logic DSL used for
// workflow/task conditions and Enrich rule values. The language mirrors
// JSON-Logic: operators are single-key objects, literals evaluate to
// themselves, and {"var": [path]} reads a dotted path out of the evaluation
// context. No such interpreter exists anywhere in the example corpus; it is
// deliberately hand-rolled over a tagged variant tree rather than built with
// reflection, per the design notes this system is grounded on.
package rule

import (
	"fmt"
)

// EvalError reports a failure to evaluate a rule: an unknown operator,
// a malformed operand, or a type mismatch between operands.
type EvalError struct {
	Op  string
	Msg string
}

func (e *EvalError) Error() string {
	if e.Op == "" {
		return e.Msg
	}
	return fmt.Sprintf("rule: operator %q: %s", e.Op, e.Msg)
}

// Kind implements the taxonomy's error-kind convention (see SPEC_FULL.md §7).
func (e *EvalError) Kind() string { return "RuleEvalError" }

// Apply evaluates rule against context and returns the resulting value, or
// an *EvalError. rule and context are generic JSON-shaped values as produced
// by encoding/json unmarshalling (map[string]interface{}, []interface{},
// string, float64, bool, nil).
func Apply(rule interface{}, context interface{}) (interface{}, error) {
	switch r := rule.(type) {
	case map[string]interface{}:
		if len(r) != 1 {
			return nil, &EvalError{Msg: fmt.Sprintf("operator object must have exactly one key, got %d", len(r))}
		}
		for op, operand := range r {
			return applyOp(op, operand, context)
		}
		return nil, &EvalError{Msg: "unreachable"}
	default:
		// literal pass-through: numbers, strings, bools, nil, arrays, and
		// objects that aren't single-key operator forms.
		return rule, nil
	}
}

func applyOp(op string, operand interface{}, context interface{}) (interface{}, error) {
	args, isArray := operand.([]interface{})
	if !isArray {
		args = []interface{}{operand}
	}

	switch op {
	case "var":
		return evalVar(args, context)
	case "==", "eq":
		return evalEquality(args, context, true)
	case "!=", "ne":
		return evalEquality(args, context, false)
	case "<", "<=", ">", ">=":
		return evalCompare(op, args, context)
	case "and":
		return evalAnd(args, context)
	case "or":
		return evalOr(args, context)
	case "!", "not":
		return evalNot(args, context)
	case "+", "-", "*", "/":
		return evalArith(op, args, context)
	case "if":
		return evalIf(args, context)
	default:
		return nil, &EvalError{Op: op, Msg: "unknown operator"}
	}
}

func evalVar(args []interface{}, context interface{}) (interface{}, error) {
	if len(args) == 0 {
		return context, nil
	}
	path, ok := args[0].(string)
	if !ok {
		return nil, &EvalError{Op: "var", Msg: "path operand must be a string"}
	}
	if path == "" {
		return context, nil
	}
	val, found := lookupPath(context, path)
	if !found {
		if len(args) > 1 {
			return evalArg(args[1], context)
		}
		return nil, nil
	}
	return val, nil
}

func evalArg(arg interface{}, context interface{}) (interface{}, error) {
	return Apply(arg, context)
}

func evalEquality(args []interface{}, context interface{}, want bool) (interface{}, error) {
	if len(args) != 2 {
		return nil, &EvalError{Op: "==", Msg: "requires exactly two operands"}
	}
	a, err := evalArg(args[0], context)
	if err != nil {
		return nil, err
	}
	b, err := evalArg(args[1], context)
	if err != nil {
		return nil, err
	}
	eq := valuesEqual(a, b)
	return eq == want, nil
}

func evalCompare(op string, args []interface{}, context interface{}) (interface{}, error) {
	if len(args) != 2 {
		return nil, &EvalError{Op: op, Msg: "requires exactly two operands"}
	}
	a, err := evalArg(args[0], context)
	if err != nil {
		return nil, err
	}
	b, err := evalArg(args[1], context)
	if err != nil {
		return nil, err
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return nil, &EvalError{Op: op, Msg: "operands must be numeric"}
	}
	switch op {
	case "<":
		return af < bf, nil
	case "<=":
		return af <= bf, nil
	case ">":
		return af > bf, nil
	case ">=":
		return af >= bf, nil
	}
	return nil, &EvalError{Op: op, Msg: "unreachable"}
}

func evalAnd(args []interface{}, context interface{}) (interface{}, error) {
	var last interface{} = true
	for _, a := range args {
		v, err := evalArg(a, context)
		if err != nil {
			return nil, err
		}
		last = v
		if !truthy(v) {
			return v, nil
		}
	}
	return last, nil
}

func evalOr(args []interface{}, context interface{}) (interface{}, error) {
	var last interface{} = false
	for _, a := range args {
		v, err := evalArg(a, context)
		if err != nil {
			return nil, err
		}
		last = v
		if truthy(v) {
			return v, nil
		}
	}
	return last, nil
}

func evalNot(args []interface{}, context interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, &EvalError{Op: "!", Msg: "requires exactly one operand"}
	}
	v, err := evalArg(args[0], context)
	if err != nil {
		return nil, err
	}
	return !truthy(v), nil
}

func evalArith(op string, args []interface{}, context interface{}) (interface{}, error) {
	if len(args) < 2 {
		return nil, &EvalError{Op: op, Msg: "requires at least two operands"}
	}
	vals := make([]float64, 0, len(args))
	for _, a := range args {
		v, err := evalArg(a, context)
		if err != nil {
			return nil, err
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, &EvalError{Op: op, Msg: "operands must be numeric"}
		}
		vals = append(vals, f)
	}
	result := vals[0]
	for _, f := range vals[1:] {
		switch op {
		case "+":
			result += f
		case "-":
			result -= f
		case "*":
			result *= f
		case "/":
			if f == 0 {
				return nil, &EvalError{Op: op, Msg: "division by zero"}
			}
			result /= f
		}
	}
	return result, nil
}

// evalIf implements JSON-Logic's cascading if: if(c1, v1, c2, v2, ..., else).
func evalIf(args []interface{}, context interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, nil
	}
	i := 0
	for i+1 < len(args) {
		cond, err := evalArg(args[i], context)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return evalArg(args[i+1], context)
		}
		i += 2
	}
	if i < len(args) {
		return evalArg(args[i], context)
	}
	return nil, nil
}
