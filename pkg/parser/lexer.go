package parser

import (
	"strings"
	"unicode"

	"github.com/leapstack-labs/leapcql/pkg/token"
)

// Lexer tokenizes CQL input.
//
// Lexical errors (unterminated strings, malformed date/time literals)
// are collected in Errors and lexing continues, so a single pass
// yields both the full token stream and every lexical diagnostic.
type Lexer struct {
	input    string
	pos      int  // current position in input
	readPos  int  // reading position (after current char)
	ch       byte // current char under examination
	line     int  // current line number (1-based)
	col      int  // current column number (1-based)
	prevLine int  // line of the previously consumed char
	prevCol  int  // column of the previously consumed char

	// Errors collected during lexing
	Errors []error
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	l.prevLine, l.prevCol = l.line, l.col
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// currentPos returns the current position.
func (l *Lexer) currentPos() Position {
	return Position{
		Line:   l.line,
		Column: l.col,
		Offset: l.pos,
	}
}

// addError records a lexical error at the given position.
func (l *Lexer) addError(pos Position, msg string) {
	l.Errors = append(l.Errors, &LexError{Pos: pos, Message: msg})
}

// lastPos returns the position of the most recently consumed
// character.
func (l *Lexer) lastPos() Position {
	return Position{
		Line:   l.prevLine,
		Column: l.prevCol,
		Offset: l.pos - 1,
	}
}

// emit stamps the end position on a fully consumed token: the position
// of the token's last character, inclusive.
func (l *Lexer) emit(tok Token) Token {
	tok.EndPos = l.lastPos()
	return tok
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.currentPos()

	var tok Token
	tok.Pos = pos

	switch l.ch {
	case 0:
		tok.Type = TOKEN_EOF
		tok.Literal = ""
		tok.EndPos = pos
		return tok
	case '+':
		tok.Type, tok.Literal = TOKEN_PLUS, "+"
	case '-':
		tok.Type, tok.Literal = TOKEN_MINUS, "-"
	case '*':
		tok.Type, tok.Literal = TOKEN_STAR, "*"
	case '/':
		tok.Type, tok.Literal = TOKEN_SLASH, "/"
	case '^':
		tok.Type, tok.Literal = TOKEN_CARET, "^"
	case '&':
		tok.Type, tok.Literal = TOKEN_AMP, "&"
	case '=':
		tok.Type, tok.Literal = TOKEN_EQ, "="
	case '~':
		tok.Type, tok.Literal = TOKEN_EQUIV, "~"
	case '!':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok.Type, tok.Literal = TOKEN_NEQ, "!="
		case '~':
			l.readChar()
			tok.Type, tok.Literal = TOKEN_NEQUIV, "!~"
		default:
			tok.Type, tok.Literal = TOKEN_ILLEGAL, string(l.ch)
			l.addError(pos, "unexpected character '!'")
		}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type, tok.Literal = TOKEN_LE, "<="
		} else {
			tok.Type, tok.Literal = TOKEN_LT, "<"
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type, tok.Literal = TOKEN_GE, ">="
		} else {
			tok.Type, tok.Literal = TOKEN_GT, ">"
		}
	case '.':
		tok.Type, tok.Literal = TOKEN_DOT, "."
	case ',':
		tok.Type, tok.Literal = TOKEN_COMMA, ","
	case ':':
		tok.Type, tok.Literal = TOKEN_COLON, ":"
	case '(':
		tok.Type, tok.Literal = TOKEN_LPAREN, "("
	case ')':
		tok.Type, tok.Literal = TOKEN_RPAREN, ")"
	case '[':
		tok.Type, tok.Literal = TOKEN_LBRACKET, "["
	case ']':
		tok.Type, tok.Literal = TOKEN_RBRACKET, "]"
	case '{':
		tok.Type, tok.Literal = TOKEN_LBRACE, "{"
	case '}':
		tok.Type, tok.Literal = TOKEN_RBRACE, "}"
	case '\'':
		tok.Type = TOKEN_STRING
		tok.Literal = l.readString(pos)
		return l.emit(tok)
	case '"':
		tok.Type = TOKEN_IDENT
		tok.Literal = l.readQuotedIdentifier(pos, '"')
		return l.emit(tok)
	case '`':
		tok.Type = TOKEN_IDENT
		tok.Literal = l.readQuotedIdentifier(pos, '`')
		return l.emit(tok)
	case '@':
		return l.readDateTime(pos)
	default:
		switch {
		case isLetter(l.ch) || l.ch == '_':
			word := l.readIdentifier()
			if phraseTok, literal, ok := l.matchPhrase(word); ok {
				tok.Type = phraseTok
				tok.Literal = literal
				return l.emit(tok)
			}
			tok.Type = LookupIdent(word)
			tok.Literal = word
			return l.emit(tok)
		case isDigit(l.ch):
			tok.Type = TOKEN_NUMBER
			tok.Literal = l.readNumber()
			if unit, ok := l.readQuantityUnit(); ok {
				tok.Type = TOKEN_QUANTITY
				tok.Unit = unit
			}
			return l.emit(tok)
		default:
			tok.Type, tok.Literal = TOKEN_ILLEGAL, string(l.ch)
			l.addError(pos, "unexpected character "+string(l.ch))
		}
	}

	l.readChar()
	return l.emit(tok)
}

// matchPhrase checks whether the word just read starts a registered
// phrase keyword ("sort by", "starts before", ...). Candidates are
// tried longest first; on a match the remaining words are consumed and
// the canonical phrase spelling is returned.
func (l *Lexer) matchPhrase(word string) (TokenType, string, bool) {
	seqs := token.PhrasesStartingWith(word)
	if len(seqs) == 0 {
		return TOKEN_ILLEGAL, "", false
	}

	for _, seq := range seqs {
		if end, ok := l.phraseEnd(seq[1:]); ok {
			for l.pos < end {
				l.readChar()
			}
			name := strings.Join(seq, " ")
			tok, _ := token.LookupPhrase(name)
			return tok, name, true
		}
	}
	return TOKEN_ILLEGAL, "", false
}

// phraseEnd scans ahead (without consuming) for the remaining words of
// a phrase candidate, separated by whitespace. Returns the offset just
// past the final word.
func (l *Lexer) phraseEnd(rest []string) (int, bool) {
	j := l.pos
	for _, w := range rest {
		// Require at least one whitespace separator
		start := j
		for j < len(l.input) && isSpace(l.input[j]) {
			j++
		}
		if j == start {
			return 0, false
		}
		if !strings.HasPrefix(l.input[j:], w) {
			return 0, false
		}
		j += len(w)
		// Word boundary check
		if j < len(l.input) {
			c := l.input[j]
			if isLetter(c) || isDigit(c) || c == '_' {
				return 0, false
			}
		}
	}
	return j, true
}

// skipWhitespaceAndComments skips whitespace, // line comments,
// and /* */ block comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			pos := l.currentPos()
			l.readChar() // skip '/'
			l.readChar() // skip '*'
			terminated := false
			for l.ch != 0 {
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar() // skip '*'
					l.readChar() // skip '/'
					terminated = true
					break
				}
				l.readChar()
			}
			if !terminated {
				l.addError(pos, "unterminated block comment")
			}
			continue
		}

		break
	}
}

// readString reads a single-quoted string literal with backslash
// escapes: \' \" \\ \n \r \t \f.
func (l *Lexer) readString(pos Position) string {
	l.readChar() // skip opening quote

	var result strings.Builder
	for {
		switch l.ch {
		case 0:
			l.addError(pos, ErrUnterminatedString)
			return result.String()
		case '\'':
			l.readChar() // skip closing quote
			return result.String()
		case '\\':
			l.readChar()
			switch l.ch {
			case '\'', '"', '\\':
				result.WriteByte(l.ch)
			case 'n':
				result.WriteByte('\n')
			case 'r':
				result.WriteByte('\r')
			case 't':
				result.WriteByte('\t')
			case 'f':
				result.WriteByte('\f')
			case 0:
				l.addError(pos, ErrUnterminatedString)
				return result.String()
			default:
				// Unknown escape: keep the backslash and the char
				result.WriteByte('\\')
				result.WriteByte(l.ch)
			}
			l.readChar()
		default:
			result.WriteByte(l.ch)
			l.readChar()
		}
	}
}

// readQuotedIdentifier reads a delimited identifier ("name" or `name`).
// A backslash escapes the delimiter inside the identifier.
func (l *Lexer) readQuotedIdentifier(pos Position, quote byte) string {
	l.readChar() // skip opening quote

	var result strings.Builder
	for {
		switch l.ch {
		case 0:
			l.addError(pos, "unterminated quoted identifier")
			return result.String()
		case quote:
			l.readChar() // skip closing quote
			return result.String()
		case '\\':
			l.readChar()
			if l.ch == 0 {
				l.addError(pos, "unterminated quoted identifier")
				return result.String()
			}
			result.WriteByte(l.ch)
			l.readChar()
		default:
			result.WriteByte(l.ch)
			l.readChar()
		}
	}
}

// readIdentifier reads an unquoted identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal: integer, decimal, or Long
// (integer with L suffix). The suffix is kept in the literal so the
// parser can classify the subtype.
func (l *Lexer) readNumber() string {
	start := l.pos

	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // skip '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	} else if l.ch == 'L' {
		l.readChar()
	}

	return l.input[start:l.pos]
}

// readQuantityUnit reads the string unit following a numeric value
// (5 'mg'), making the quantity a single token. Whitespace between
// value and unit is consumed only when a unit actually follows.
func (l *Lexer) readQuantityUnit() (string, bool) {
	j := l.pos
	for j < len(l.input) && isSpace(l.input[j]) {
		j++
	}
	if j >= len(l.input) || l.input[j] != '\'' {
		return "", false
	}
	for l.pos < j {
		l.readChar()
	}
	return l.readString(l.currentPos()), true
}

// readDateTime reads an @-prefixed date, time, or datetime literal:
//
//	@2024-01-15
//	@T14:30:00.123
//	@2024-01-15T10:30:00.0Z
//	@2024-01-15T10:30:00+05:30
func (l *Lexer) readDateTime(pos Position) Token {
	start := l.pos
	l.readChar() // skip '@'

	typ := TOKEN_DATE

	if l.ch == 'T' {
		typ = TOKEN_TIME
		l.readChar()
		if !l.readTimePart(pos) {
			typ = TOKEN_ILLEGAL
		}
	} else {
		if !l.readDigits(4) {
			l.addError(pos, "malformed date literal: expected 4-digit year")
			typ = TOKEN_ILLEGAL
		} else {
			// Optional -MM and -DD
			for i := 0; i < 2 && l.ch == '-' && isDigit(l.peekChar()); i++ {
				l.readChar()
				if !l.readDigits(2) {
					l.addError(pos, "malformed date literal: expected 2-digit month/day")
					typ = TOKEN_ILLEGAL
					break
				}
			}
			if typ != TOKEN_ILLEGAL && l.ch == 'T' {
				typ = TOKEN_DATETIME
				l.readChar()
				if isDigit(l.ch) {
					if !l.readTimePart(pos) {
						typ = TOKEN_ILLEGAL
					} else {
						l.readTimezone()
					}
				}
			}
		}
	}

	tok := Token{Type: typ, Literal: l.input[start:l.pos], Pos: pos}
	return l.emit(tok)
}

// readTimePart reads hh[:mm[:ss[.fff]]], reporting an error on a
// malformed component.
func (l *Lexer) readTimePart(pos Position) bool {
	if !l.readDigits(2) {
		l.addError(pos, "malformed time literal: expected 2-digit hour")
		return false
	}
	for i := 0; i < 2 && l.ch == ':' && isDigit(l.peekChar()); i++ {
		l.readChar()
		if !l.readDigits(2) {
			l.addError(pos, "malformed time literal: expected 2-digit minute/second")
			return false
		}
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return true
}

// readTimezone reads an optional timezone suffix: Z or ±hh:mm.
// A sign is only consumed when a full offset follows, so a trailing
// minus stays available as an operator.
func (l *Lexer) readTimezone() {
	if l.ch == 'Z' {
		l.readChar()
		return
	}
	if (l.ch == '+' || l.ch == '-') && l.pos+5 < len(l.input) {
		rest := l.input[l.pos+1:]
		if len(rest) >= 5 && isDigit(rest[0]) && isDigit(rest[1]) && rest[2] == ':' && isDigit(rest[3]) && isDigit(rest[4]) {
			for i := 0; i < 6; i++ {
				l.readChar()
			}
		}
	}
}

// readDigits consumes exactly n digits, returning false if fewer are
// available.
func (l *Lexer) readDigits(n int) bool {
	for i := 0; i < n; i++ {
		if !isDigit(l.ch) {
			return false
		}
		l.readChar()
	}
	return true
}

// isLetter returns true if ch is a letter.
func isLetter(ch byte) bool {
	return unicode.IsLetter(rune(ch))
}

// isDigit returns true if ch is a digit.
func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// isSpace returns true if ch is whitespace.
func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

// Tokenize returns all tokens from the input.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TOKEN_EOF {
			break
		}
	}
	return tokens
}
