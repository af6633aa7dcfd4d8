package query

import (
	"encoding/json"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
)

// AST for Participle Parser

type ASTWhere struct {
	Conditions []*ASTCondition `parser:"(@@ ('AND' @@)*)?"`
}

type ASTCondition struct {
	Field string      `parser:"@(Ident | String)"`
	Value *ASTLiteral `parser:"'=' @@"`
}

type ASTLiteral struct {
	Number *string  `parser:"  @Number"`
	StrVal *string  `parser:"| @String"`
	Bool   *Boolean `parser:"| @('TRUE' | 'FALSE')"`
	Null   bool     `parser:"| @'NULL'"`
}

// Boolean captures TRUE/FALSE keywords regardless of case.
type Boolean bool

func (b *Boolean) Capture(values []string) error {
	*b = Boolean(strings.EqualFold(values[0], "TRUE"))
	return nil
}

func (l *ASTLiteral) ToValue() interface{} {
	switch {
	case l.Number != nil:
		// kept as text, the value is compared exactly
		return json.Number(strings.TrimPrefix(*l.Number, "+"))
	case l.StrVal != nil:
		return *l.StrVal
	case l.Bool != nil:
		return bool(*l.Bool)
	}
	return nil
}

func (w *ASTWhere) ToQuery() (Query, error) {
	fields := make(map[string]interface{}, len(w.Conditions))
	for _, c := range w.Conditions {
		if _, ok := fields[c.Field]; ok {
			return Empty, errors.Errorf("field %q is compared more than once", c.Field)
		}
		fields[c.Field] = c.Value.ToValue()
	}
	return New(fields), nil
}

// Lexer definition
var (
	whereLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Keyword", Pattern: `(?i)\b(AND|TRUE|FALSE|NULL)\b`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
		{Name: "Number", Pattern: `[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`},
		{Name: "String", Pattern: `'[^']*'|"(\\.|[^"\\])*"`},
		{Name: "Operator", Pattern: `=`},
		{Name: "Whitespace", Pattern: `\s+`},
	})

	whereParser = participle.MustBuild[ASTWhere](
		participle.Lexer(whereLexer),
		participle.Unquote("String"),
		participle.CaseInsensitive("Keyword"),
		participle.Elide("Whitespace"),
	)
)

// Parse turns a where clause such as `city = 'Roma' AND pop = 3` into a Query.
// An empty clause yields the empty query.
func Parse(input string) (Query, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Empty, nil
	}

	ast, err := whereParser.ParseString("", input)
	if err != nil {
		return Empty, errors.Wrap(err, "parse error")
	}

	return ast.ToQuery()
}
