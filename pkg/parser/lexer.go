package parser

import "github.com/alecthomas/participle/v2/lexer"

// fixLexer tokenizes the surface syntax. Keywords are lexed as their
// own token before the generic identifier rule so that, for instance,
// "then" in "if eq n 0 then 0 else 1" can never be swallowed as just
// another application argument the way a same-shaped identifier would
// be — participle has no backtracking keyword table, so the lexer has
// to carve keywords out itself. Negative integers lex as a single
// token, since there is no subtraction operator to otherwise claim the
// leading "-". Identifiers may carry one trailing "!" (writeArray!).
// ";" is the statement-separator sugar for "let x = e; rest" meaning
// "let x = e in rest".
var fixLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Let", `let\b`, nil},
		{"In", `in\b`, nil},
		{"If", `if\b`, nil},
		{"Then", `then\b`, nil},
		{"Else", `else\b`, nil},
		{"Int", `-?[0-9]+`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*!?`, nil},
		{"Arrow", `->`, nil},
		{"Punct", `[\\=();]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
