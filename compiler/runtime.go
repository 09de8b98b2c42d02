package compiler

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ---- SCRIPT MODULE ----

// nestEntry pairs a block opener with its compiled-line index while the
// expression compiler walks the file. loopBack is set by while and ends up
// on the matching end's table entry.
type nestEntry struct {
	name     string
	line     int
	loopBack bool
}

// endLink is the backward jump-table entry of an end line.
type endLink struct {
	opener   int
	loopBack bool
}

// ScriptModule is the unit compiled and executed together: the compiled
// postfix streams, the block jump tables built alongside them, and the
// run-time state (environment, branch-decision stack, line cursor). Two
// modules are fully isolated from one another.
type ScriptModule struct {
	sourceLines []string
	lines       [][]Token

	// Block resolver output. Both tables key on compiled-line indices.
	openerToEnd map[int]int
	endToOpener map[int]endLink
	nest        []nestEntry // compile-time only

	vars      map[string]*Variable
	ifResults []bool // branch decision per live if/elseif/else/while block
	cur       int    // compiled-line index currently executing

	interactive bool
	out         io.Writer
}

func NewScriptModule() *ScriptModule {
	return &ScriptModule{
		openerToEnd: make(map[int]int),
		endToOpener: make(map[int]endLink),
		vars:        make(map[string]*Variable),
		out:         os.Stdout,
	}
}

// NewInteractive returns a module for REPL use: the environment persists
// across prompts, and block openers are rejected at compile time since
// each prompt line is compiled in isolation.
func NewInteractive() *ScriptModule {
	m := NewScriptModule()
	m.interactive = true
	return m
}

// ---- PUBLIC ENTRYPOINTS ----

// RunFile reads a script, compiles it, and executes it. Compile and run
// diagnostics are printed on the module's writer and the returned error
// reports the same failure to the caller; a read failure is only returned.
func RunFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read error: %w", err)
	}
	m := NewScriptModule()
	return m.Run(strings.Split(string(data), "\n"))
}

// Run compiles and executes a line sequence, printing the single
// user-visible diagnostic on failure.
func (m *ScriptModule) Run(lines []string) error {
	if err := m.Compile(lines); err != nil {
		m.reportDiagnostic("Syntax error", err)
		return err
	}
	if err := m.Execute(); err != nil {
		m.reportDiagnostic("Runtime error", err)
		return err
	}
	return nil
}

// EvalLine compiles and evaluates a single prompt line against the
// persistent environment and returns the line's result token.
func (m *ScriptModule) EvalLine(line string) (Token, error) {
	tokens, err := m.compileLine(line, len(m.lines))
	if err != nil {
		return Token{}, err
	}
	result, evalErr := m.evalTokens(tokens)
	if evalErr != nil {
		return Token{}, evalErr
	}
	return result, nil
}

// ---- COMPILE ----

// Compile lowers every non-empty source line to postfix. Compiled-line
// indices count only non-empty lines; the jump tables key on them. After
// a successful compile the nest stack is empty and every opener has its
// end.
func (m *ScriptModule) Compile(lines []string) error {
	m.sourceLines = lines
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		compiled, err := m.compileLine(line, len(m.lines))
		if err != nil {
			return asError(err).atLine(len(m.lines) + 1)
		}
		m.lines = append(m.lines, compiled)
	}
	if len(m.nest) > 0 {
		top := m.nest[len(m.nest)-1]
		return newError("'%s' is missing an 'end' specifier", top.name).atLine(top.line + 1)
	}
	return nil
}

// ---- EXECUTE ----

// Execute walks the compiled lines top to bottom. Control-flow functions
// steer by writing the cursor through goToLine; the +1 step below applies
// after any jump.
func (m *ScriptModule) Execute() error {
	m.ifResults = m.ifResults[:0]
	for m.cur = 0; m.cur < len(m.lines); m.cur++ {
		if _, err := m.evalTokens(m.lines[m.cur]); err != nil {
			return err.atLine(m.cur + 1)
		}
	}
	return nil
}

// goToLine parks the cursor one below the target line so the post-step
// increment executes the target itself.
func (m *ScriptModule) goToLine(n int) {
	m.cur = n - 1
}

func (m *ScriptModule) pushResult(taken bool) {
	m.ifResults = append(m.ifResults, taken)
}

func (m *ScriptModule) popResult(name string) (bool, error) {
	top := len(m.ifResults) - 1
	if top < 0 {
		return false, newError("'%s' without an open block", name)
	}
	taken := m.ifResults[top]
	m.ifResults = m.ifResults[:top]
	return taken, nil
}

// ---- STACK EVALUATOR ----

// evalTokens processes one postfix stream against an operand stack and
// returns the line's single result token. Unresolved symbols materialize
// into variable references here, or stay behind as literal strings.
func (m *ScriptModule) evalTokens(tokens []Token) (Token, *Error) {
	var stack []Token

	for _, tok := range tokens {
		switch tok.Kind {
		case TOK_NUMBER, TOK_STRING:
			stack = append(stack, tok)

		case TOK_SYMBOL:
			if v, ok := m.vars[tok.Str]; ok {
				stack = append(stack, variableToken(v))
			} else {
				stack = append(stack, tok)
			}

		case TOK_OPERATOR:
			op := tok.Op
			if len(stack) < op.Arity {
				return Token{}, newError("Invalid number of operands for operator %s", op.Symbol)
			}
			args := make([]Token, op.Arity)
			for i := op.Arity - 1; i >= 0; i-- {
				args[i] = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			}
			result, err := dispatchOperator(m, op, args)
			if err != nil {
				return Token{}, err
			}
			stack = append(stack, result)

		case TOK_FUNCTION:
			fn := tok.Fn
			if len(stack) < fn.Arity {
				return Token{}, newError("Invalid number of arguments for function %s", fn.Name)
			}
			params := make([]Token, fn.Arity)
			for i := fn.Arity - 1; i >= 0; i-- {
				params[i] = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			}
			if !fn.Validate(params) {
				return Token{}, newError("Wrong parameter types for function %s", fn.Name)
			}
			value, err := fn.Execute(m, params)
			if err != nil {
				return Token{}, asError(err)
			}
			stack = append(stack, numberToken(value))
		}
	}

	if len(stack) != 1 {
		return Token{}, newError("Not a valid expression")
	}
	return stack[0], nil
}

// dispatchOperator tries the operator's operations in order and takes the
// first whose operand kinds match.
func dispatchOperator(m *ScriptModule, op *Operator, args []Token) (Token, *Error) {
	for _, operation := range op.operations {
		result, ok, err := operation(m, args)
		if err != nil {
			return Token{}, asError(err)
		}
		if ok {
			return result, nil
		}
	}
	return Token{}, newError("Invalid operands for operator %s", op.Symbol)
}

func asError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Msg: err.Error()}
}

// ---- DIAGNOSTICS ----

// reportDiagnostic prints the two-line user-visible diagnostic: the
// classification with the 1-based compiled-line index, then the message.
func (m *ScriptModule) reportDiagnostic(kind string, err error) {
	if e := asError(err); e.Line > 0 {
		fmt.Fprintf(m.out, "%s on line %d\n", kind, e.Line)
		fmt.Fprintln(m.out, e.Msg)
		return
	}
	fmt.Fprintf(m.out, "%s\n", kind)
	fmt.Fprintln(m.out, err.Error())
}
