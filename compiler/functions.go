package compiler

import (
	"fmt"
	"math"
)

// ---- FUNCTION REGISTRY ----

// Function describes one registered function. Execute runs at evaluation
// time and returns the numeric line value pushed back onto the operand
// stack; Validate gates the popped parameters; Compile, when set, runs as
// the expression compiler emits the reference and is how the control-flow
// functions build the block jump tables.
type Function struct {
	Name     string
	Arity    int
	Execute  func(m *ScriptModule, params []Token) (float64, error)
	Validate func(params []Token) bool
	Compile  func(m *ScriptModule, line int) error
}

// functions is immutable after startup.
var functions = []*Function{
	{
		Name:     "sqrt",
		Arity:    1,
		Execute:  func(_ *ScriptModule, params []Token) (float64, error) { return math.Sqrt(params[0].Numeric()), nil },
		Validate: func(params []Token) bool { return params[0].IsNumeric() },
	},
	{
		Name:  "print",
		Arity: 1,
		Execute: func(m *ScriptModule, params []Token) (float64, error) {
			fmt.Fprintln(m.out, stringify(params[0]))
			return 1, nil
		},
		Validate: func(params []Token) bool { return params[0].IsNumeric() || params[0].IsString() },
	},
	{
		Name:     "if",
		Arity:    1,
		Execute:  execIf,
		Validate: numericParam,
		Compile:  compileOpener("if", false),
	},
	{
		Name:     "elseif",
		Arity:    1,
		Execute:  execElseif,
		Validate: numericParam,
		Compile:  compileBranch("elseif"),
	},
	{
		Name:     "else",
		Arity:    0,
		Execute:  execElse,
		Validate: func([]Token) bool { return true },
		Compile:  compileBranch("else"),
	},
	{
		Name:     "while",
		Arity:    1,
		Execute:  execIf, // identical at run time; the loop lives in the end action
		Validate: numericParam,
		Compile:  compileOpener("while", true),
	},
	{
		Name:     "end",
		Arity:    0,
		Execute:  execEnd,
		Validate: func([]Token) bool { return true },
		Compile:  compileEnd,
	},
}

func lookupFunction(name string) *Function {
	for _, fn := range functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

func numericParam(params []Token) bool {
	return params[0].IsNumeric()
}

// ---- COMPILE HOOKS (block resolver) ----

// compileOpener opens a nested block. Openers cannot be compiled in
// interactive mode: a block spans lines and the REPL compiles each prompt
// line in isolation.
func compileOpener(name string, loopBack bool) func(m *ScriptModule, line int) error {
	return func(m *ScriptModule, line int) error {
		if m.interactive {
			return newError("'%s' is not supported in interactive mode", name)
		}
		m.nest = append(m.nest, nestEntry{name: name, line: line, loopBack: loopBack})
		return nil
	}
}

// compileBranch continues an if chain: it closes the previous branch's
// forward jump at this line and takes over the top nest entry.
func compileBranch(name string) func(m *ScriptModule, line int) error {
	return func(m *ScriptModule, line int) error {
		if m.interactive {
			return newError("'%s' is not supported in interactive mode", name)
		}
		top := len(m.nest) - 1
		if top < 0 || m.nest[top].name != "if" && m.nest[top].name != "elseif" {
			return newError("'%s' without a matching 'if'", name)
		}
		m.openerToEnd[m.nest[top].line] = line
		m.nest[top] = nestEntry{name: name, line: line}
		return nil
	}
}

func compileEnd(m *ScriptModule, line int) error {
	if m.interactive {
		return newError("'end' is not supported in interactive mode")
	}
	top := len(m.nest) - 1
	if top < 0 {
		return newError("'end' without a matching block opener")
	}
	entry := m.nest[top]
	m.nest = m.nest[:top]
	m.openerToEnd[entry.line] = line
	m.endToOpener[line] = endLink{opener: entry.line, loopBack: entry.loopBack}
	return nil
}

// ---- EXECUTORS (run-time cursor manipulation) ----
//
// Jumps park the cursor one below the target so the post-step increment
// executes the target line itself. A false condition therefore transfers
// to the next branch boundary (elseif / else / end) and still runs it,
// which is what keeps the branch-decision stack balanced on every path.

func execIf(m *ScriptModule, params []Token) (float64, error) {
	cond := params[0].Numeric() != 0
	if !cond {
		target, ok := m.openerToEnd[m.cur]
		if !ok {
			return 0, newError("block opener without a matching 'end'")
		}
		m.goToLine(target)
	}
	m.pushResult(cond)
	return 1, nil
}

func execElseif(m *ScriptModule, params []Token) (float64, error) {
	prev, err := m.popResult("elseif")
	if err != nil {
		return 0, err
	}
	cond := params[0].Numeric() != 0
	if prev || !cond {
		target, ok := m.openerToEnd[m.cur]
		if !ok {
			return 0, newError("block opener without a matching 'end'")
		}
		m.goToLine(target)
	}
	m.pushResult(prev || cond)
	return 1, nil
}

func execElse(m *ScriptModule, _ []Token) (float64, error) {
	prev, err := m.popResult("else")
	if err != nil {
		return 0, err
	}
	if prev {
		target, ok := m.openerToEnd[m.cur]
		if !ok {
			return 0, newError("block opener without a matching 'end'")
		}
		m.goToLine(target)
	}
	// The chain is committed either way: a prior branch ran, or this
	// body runs now.
	m.pushResult(true)
	return 1, nil
}

func execEnd(m *ScriptModule, _ []Token) (float64, error) {
	taken, err := m.popResult("end")
	if err != nil {
		return 0, err
	}
	if link, ok := m.endToOpener[m.cur]; ok && link.loopBack && taken {
		m.goToLine(link.opener)
	}
	return 1, nil
}
