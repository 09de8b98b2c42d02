package compiler

import (
	"strings"
	"testing"
)

func compileSingle(t *testing.T, line string) []Token {
	t.Helper()
	m := NewScriptModule()
	tokens, err := m.compileLine(line, 0)
	if err != nil {
		t.Fatalf("compileLine(%q) error: %v", line, err)
	}
	return tokens
}

func postfix(tokens []Token) string {
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		parts = append(parts, tok.String())
	}
	return strings.Join(parts, " ")
}

func wantPostfix(t *testing.T, line, want string) {
	t.Helper()
	if got := postfix(compileSingle(t, line)); got != want {
		t.Fatalf("postfix(%q) = %q, want %q", line, got, want)
	}
}

func Test_Parser_Precedence(t *testing.T) {
	cases := []struct{ line, want string }{
		{"1 + 2 * 3", "1 2 3 * +"},
		{"1 * 2 + 3", "1 2 * 3 +"},
		{"8 - 4 - 2", "8 4 - 2 -"},        // binary operators associate left
		{"2 ^ 3 ^ 2", "2 3 ^ 2 ^"},        // ^ included
		{"1 < 2 && 3 > 4", "1 2 < 3 4 > &&"},
		{"x = 1 + 2", "x 1 2 + ="},
		{"1 << 2 + 3", "1 2 3 + <<"},
	}
	for _, tc := range cases {
		wantPostfix(t, tc.line, tc.want)
	}
}

func Test_Parser_Grouping(t *testing.T) {
	wantPostfix(t, "(1 + 2) * 3", "1 2 + 3 *")
	wantPostfix(t, "((1))", "1")
	wantPostfix(t, `print ("a" + "b")`, "a b + print")
}

func Test_Parser_UnaryMinus(t *testing.T) {
	tokens := compileSingle(t, "-5")
	if len(tokens) != 2 || tokens[1].Kind != TOK_OPERATOR || tokens[1].Op.Arity != 1 {
		t.Fatalf("-5 should compile to operand + unary operator, got %q", postfix(tokens))
	}

	// After an operand the same lexeme is the binary operator.
	tokens = compileSingle(t, "1 - 2")
	if tokens[2].Op.Arity != 2 {
		t.Fatalf("infix - should be binary, got arity %d", tokens[2].Op.Arity)
	}

	// After another operator it flips back to prefix position.
	tokens = compileSingle(t, "1 - -2")
	if got := postfix(tokens); got != "1 2 - -" {
		t.Fatalf("postfix = %q", got)
	}
	if tokens[2].Op.Arity != 1 || tokens[3].Op.Arity != 2 {
		t.Fatalf("expected unary then binary -, got %d and %d", tokens[2].Op.Arity, tokens[3].Op.Arity)
	}
}

func Test_Parser_FunctionsStackLikeOperators(t *testing.T) {
	wantPostfix(t, "print 5", "5 print")
	wantPostfix(t, `print("hi")`, "hi print")
	// A lower-precedence binary operator pops the pending function first.
	wantPostfix(t, "sqrt 7 + 1", "7 sqrt 1 +")
	// ^ ties with function precedence and still pops (non-strict rule).
	wantPostfix(t, "sqrt 4 ^ 2", "4 sqrt 2 ^")
}

func Test_Parser_SymbolsAndNumbers(t *testing.T) {
	tokens := compileSingle(t, "foo 3.25 1e3")
	if tokens[0].Kind != TOK_SYMBOL || tokens[0].Str != "foo" {
		t.Fatalf("expected symbol foo, got %+v", tokens[0])
	}
	if tokens[1].Kind != TOK_NUMBER || tokens[1].Num != 3.25 {
		t.Fatalf("expected number 3.25, got %+v", tokens[1])
	}
	if tokens[2].Kind != TOK_NUMBER || tokens[2].Num != 1000 {
		t.Fatalf("expected number 1000, got %+v", tokens[2])
	}
}

func Test_Parser_Errors(t *testing.T) {
	cases := []struct{ line, want string }{
		{") 1", "Mismatched brackets"},
		{"1 @ 2", "Unsupported operator @"},
		{"1 +- 2", "Unsupported operator +-"},
		{`"oops`, "Mismatched quotation marks"},
	}
	for _, tc := range cases {
		m := NewScriptModule()
		_, err := m.compileLine(tc.line, 0)
		if err == nil || err.Error() != tc.want {
			t.Errorf("compileLine(%q) error = %v, want %q", tc.line, err, tc.want)
		}
	}
}

// ---- BLOCK RESOLVER ----

func Test_Resolver_WhileTables(t *testing.T) {
	m := NewScriptModule()
	err := m.Compile([]string{
		"i = 0",
		"while (i < 3)",
		"i = i + 1",
		"end",
	})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if len(m.nest) != 0 {
		t.Fatalf("nest stack not empty after compile: %v", m.nest)
	}
	if got := m.openerToEnd[1]; got != 3 {
		t.Fatalf("openerToEnd[1] = %d, want 3", got)
	}
	link, ok := m.endToOpener[3]
	if !ok || link.opener != 1 || !link.loopBack {
		t.Fatalf("endToOpener[3] = %+v, %v", link, ok)
	}
}

func Test_Resolver_ChainTables(t *testing.T) {
	m := NewScriptModule()
	err := m.Compile([]string{
		"if (1)",
		`print "one"`,
		"elseif (2)",
		`print "two"`,
		"else",
		`print "three"`,
		"end",
	})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	// Each branch jumps to the next boundary, the last one to end.
	for opener, end := range map[int]int{0: 2, 2: 4, 4: 6} {
		if got := m.openerToEnd[opener]; got != end {
			t.Fatalf("openerToEnd[%d] = %d, want %d", opener, got, end)
		}
	}
	link := m.endToOpener[6]
	if link.opener != 4 || link.loopBack {
		t.Fatalf("endToOpener[6] = %+v", link)
	}
}

func Test_Resolver_NestedBlocks(t *testing.T) {
	m := NewScriptModule()
	err := m.Compile([]string{
		"while (1)",
		"if (0)",
		`print "x"`,
		"end",
		"end",
	})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if m.openerToEnd[1] != 3 || m.openerToEnd[0] != 4 {
		t.Fatalf("openerToEnd = %v", m.openerToEnd)
	}
	if m.endToOpener[3].opener != 1 || m.endToOpener[4].opener != 0 {
		t.Fatalf("endToOpener = %v", m.endToOpener)
	}
	if !m.endToOpener[4].loopBack || m.endToOpener[3].loopBack {
		t.Fatal("loop-back action should sit on the outer end only")
	}
}

func Test_Resolver_UnclosedOpener(t *testing.T) {
	m := NewScriptModule()
	err := m.Compile([]string{"if (1)"})
	if err == nil {
		t.Fatal("expected a compile error for an unclosed if")
	}
	e := asError(err)
	if e.Line != 1 {
		t.Fatalf("error line = %d, want 1", e.Line)
	}
	if !strings.Contains(e.Msg, "missing an 'end' specifier") {
		t.Fatalf("error = %q", e.Msg)
	}
}

func Test_Resolver_Misplaced(t *testing.T) {
	cases := []struct{ line, want string }{
		{"end", "'end' without a matching block opener"},
		{"elseif (1)", "'elseif' without a matching 'if'"},
		{"else", "'else' without a matching 'if'"},
	}
	for _, tc := range cases {
		m := NewScriptModule()
		err := m.Compile([]string{tc.line})
		if err == nil || err.Error() != tc.want {
			t.Errorf("Compile(%q) error = %v, want %q", tc.line, err, tc.want)
		}
	}
}

func Test_Resolver_ElseifAfterWhileRejected(t *testing.T) {
	m := NewScriptModule()
	err := m.Compile([]string{
		"while (1)",
		"elseif (1)",
		"end",
	})
	if err == nil || !strings.Contains(err.Error(), "without a matching 'if'") {
		t.Fatalf("error = %v", err)
	}
}

func Test_Resolver_InteractiveRejectsOpeners(t *testing.T) {
	for _, line := range []string{"if (1)", "while (1)", "elseif (1)", "else", "end"} {
		m := NewInteractive()
		if _, err := m.EvalLine(line); err == nil || !strings.Contains(err.Error(), "interactive mode") {
			t.Errorf("EvalLine(%q) error = %v, want interactive-mode rejection", line, err)
		}
	}
}
