package compiler

import "math"

// ---- OPERATOR REGISTRY ----

// operation is one typed dispatch alternative of an operator. It reports
// whether the operand kinds matched; a matched operation may still fail
// (division by zero). args[0] is the left-most written operand.
type operation func(m *ScriptModule, args []Token) (Token, bool, error)

// Operator describes one registered operator: its surface symbol, integer
// precedence, arity, and the ordered dispatch list the evaluator walks
// until an operand-kind match is found.
type Operator struct {
	Symbol     string
	Precedence int
	Arity      int
	operations []operation
}

// funcPrecedence is shared by every registered function; it ties with ^.
const funcPrecedence = 23

// grouping operators carry no operations; they only steer the
// expression compiler.
func grouping(symbol string) *Operator {
	return &Operator{Symbol: symbol, Precedence: 80}
}

func binary(symbol string, precedence int, ops ...operation) *Operator {
	return &Operator{Symbol: symbol, Precedence: precedence, Arity: 2, operations: ops}
}

func unary(symbol string, precedence int, ops ...operation) *Operator {
	return &Operator{Symbol: symbol, Precedence: precedence, Arity: 1, operations: ops}
}

// operators is immutable after startup. Dispatch order matters: + tries
// numeric addition before concatenation.
var operators = []*Operator{
	binary("=", 2, assignVariable),
	binary("||", 5, numericBinary(func(a, b float64) float64 { return boolNum(a != 0 || b != 0) })),
	binary("&&", 7, numericBinary(func(a, b float64) float64 { return boolNum(a != 0 && b != 0) })),
	binary("==", 13, numericBinary(func(a, b float64) float64 { return boolNum(doubleEquals(a, b)) })),
	binary("!=", 15, numericBinary(func(a, b float64) float64 { return boolNum(!doubleEquals(a, b)) })),
	binary(">", 15, numericBinary(func(a, b float64) float64 { return boolNum(a > b) })),
	binary("<", 15, numericBinary(func(a, b float64) float64 { return boolNum(a < b) })),
	binary(">=", 15, numericBinary(func(a, b float64) float64 { return boolNum(a >= b) })),
	binary("<=", 15, numericBinary(func(a, b float64) float64 { return boolNum(a <= b) })),
	binary("|", 16, numericBinary(func(a, b float64) float64 { return float64(int32(a) | int32(b)) })),
	binary("&", 16, numericBinary(func(a, b float64) float64 { return float64(int32(a) & int32(b)) })),
	binary("<<", 18, numericBinary(leftShift)),
	binary(">>", 18, numericBinary(rightShift)),
	binary("+", 19, numericBinary(func(a, b float64) float64 { return a + b }), concatStrings),
	binary("-", 19, numericBinary(func(a, b float64) float64 { return a - b })),
	binary("*", 21, numericBinary(func(a, b float64) float64 { return a * b })),
	binary("/", 21, divide),
	binary("%", 21, modulo),
	binary("^", 23, numericBinary(math.Pow)),
	unary("-", 25, numericUnary(func(x float64) float64 { return -x })),
	unary("!", 27, numericUnary(func(x float64) float64 { return boolNum(x == 0) })),
	grouping("("),
	grouping(")"),
}

// lookupOperator resolves an operator run against the registry. A symbol
// may be registered with both arities (-); prefix position selects the
// unary descriptor, operand position the binary one.
func lookupOperator(symbol string, prefix bool) *Operator {
	var un, bin *Operator
	for _, op := range operators {
		if op.Symbol != symbol {
			continue
		}
		switch op.Arity {
		case 1:
			if un == nil {
				un = op
			}
		default:
			if bin == nil {
				bin = op
			}
		}
	}
	if prefix && un != nil {
		return un
	}
	if bin != nil {
		return bin
	}
	return un
}

// ---- OPERATIONS ----

func boolNum(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// doubleEquals compares with an absolute epsilon of 1e-4; all other
// numeric comparisons use raw IEEE ordering.
func doubleEquals(a, b float64) bool {
	const epsilon = 0.0001
	diff := a - b
	return diff < epsilon && -diff < epsilon
}

// numericBinary wraps a plain double function into an operation that
// matches when both operands are numeric.
func numericBinary(f func(a, b float64) float64) operation {
	return func(_ *ScriptModule, args []Token) (Token, bool, error) {
		if !args[0].IsNumeric() || !args[1].IsNumeric() {
			return Token{}, false, nil
		}
		return numberToken(f(args[0].Numeric(), args[1].Numeric())), true, nil
	}
}

func numericUnary(f func(x float64) float64) operation {
	return func(_ *ScriptModule, args []Token) (Token, bool, error) {
		if !args[0].IsNumeric() {
			return Token{}, false, nil
		}
		return numberToken(f(args[0].Numeric())), true, nil
	}
}

func divide(_ *ScriptModule, args []Token) (Token, bool, error) {
	if !args[0].IsNumeric() || !args[1].IsNumeric() {
		return Token{}, false, nil
	}
	if args[1].Numeric() == 0 {
		return Token{}, true, newError("Division by zero")
	}
	return numberToken(args[0].Numeric() / args[1].Numeric()), true, nil
}

func modulo(_ *ScriptModule, args []Token) (Token, bool, error) {
	if !args[0].IsNumeric() || !args[1].IsNumeric() {
		return Token{}, false, nil
	}
	if int32(args[1].Numeric()) == 0 {
		return Token{}, true, newError("Modulo by zero")
	}
	return numberToken(float64(int32(args[0].Numeric()) % int32(args[1].Numeric()))), true, nil
}

// leftShift widens the left operand to 64 bits; rightShift stays at 32.
// Out-of-range shift counts yield zero.
func leftShift(a, b float64) float64 {
	n := int32(b)
	if n < 0 || n > 63 {
		return 0
	}
	return float64(int64(a) << n)
}

func rightShift(a, b float64) float64 {
	n := int32(b)
	if n < 0 || n > 31 {
		return 0
	}
	return float64(int32(a) >> n)
}

// concatStrings is the second dispatch entry of +. It matches when either
// operand is a string; a numeric partner is rendered in its compact form.
// This is the only place a number coerces to a string.
func concatStrings(_ *ScriptModule, args []Token) (Token, bool, error) {
	if !args[0].IsString() && !args[1].IsString() {
		return Token{}, false, nil
	}
	return stringToken(stringify(args[0]) + stringify(args[1])), true, nil
}

func stringify(t Token) string {
	if t.IsString() {
		return t.Text()
	}
	return formatNumber(t.Numeric())
}

// assignVariable implements =. The left operand is either an unresolved
// symbol (the variable name), a quoted string holding the name, or an
// already-materialized reference; the environment entry is created or
// replaced with the kind of the right operand. Assignment is an
// expression: it yields a reference to the just-written entry.
func assignVariable(m *ScriptModule, args []Token) (Token, bool, error) {
	var name string
	switch args[0].Kind {
	case TOK_SYMBOL, TOK_STRING:
		name = args[0].Str
	case TOK_VARIABLE:
		name = args[0].Var.Name
	default:
		return Token{}, false, nil
	}
	if name == "" {
		return Token{}, false, nil
	}

	v := &Variable{Name: name}
	switch {
	case args[1].IsNumeric():
		v.Kind = NumberValue
		v.Num = args[1].Numeric()
	case args[1].IsString():
		v.Kind = StringValue
		v.Str = args[1].Text()
	default:
		return Token{}, false, nil
	}

	m.vars[name] = v
	return variableToken(v), true, nil
}
