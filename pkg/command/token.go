package command

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TokenKind is the wire type of a token.
type TokenKind uint8

const (
	TokenString TokenKind = iota + 1
	TokenInt
	TokenFloat
)

// String returns the kind name.
func (k TokenKind) String() string {
	switch k {
	case TokenString:
		return "string"
	case TokenInt:
		return "int"
	case TokenFloat:
		return "float"
	default:
		return "invalid"
	}
}

// Token is one element of an encoded command: a string, an integer, or a
// floating value. The zero Token is invalid.
type Token struct {
	kind TokenKind
	s    string
	i    int64
	f    float64
}

// Str returns a string token.
func Str(s string) Token { return Token{kind: TokenString, s: s} }

// Int returns an integer token.
func Int(i int) Token { return Token{kind: TokenInt, i: int64(i)} }

// Int64 returns an integer token.
func Int64(i int64) Token { return Token{kind: TokenInt, i: i} }

// Float returns a floating token.
func Float(f float64) Token { return Token{kind: TokenFloat, f: f} }

// Kind returns the token kind.
func (t Token) Kind() TokenKind { return t.kind }

// Valid reports whether the token was built by one of the constructors.
func (t Token) Valid() bool { return t.kind != 0 }

// AsString returns the string value and whether the token is a string.
func (t Token) AsString() (string, bool) { return t.s, t.kind == TokenString }

// AsInt returns the integer value and whether the token is an integer.
func (t Token) AsInt() (int64, bool) { return t.i, t.kind == TokenInt }

// AsFloat returns the numeric value of an int or float token.
func (t Token) AsFloat() (float64, bool) {
	switch t.kind {
	case TokenFloat:
		return t.f, true
	case TokenInt:
		return float64(t.i), true
	}
	return 0, false
}

// Interface returns the token as a plain Go value (string, int64, float64).
func (t Token) Interface() interface{} {
	switch t.kind {
	case TokenString:
		return t.s
	case TokenInt:
		return t.i
	case TokenFloat:
		return t.f
	}
	return nil
}

// Equal compares kind and value. NaN floats compare equal to each other.
func (t Token) Equal(o Token) bool {
	if t.kind != o.kind {
		return false
	}
	switch t.kind {
	case TokenString:
		return t.s == o.s
	case TokenInt:
		return t.i == o.i
	case TokenFloat:
		if math.IsNaN(t.f) && math.IsNaN(o.f) {
			return true
		}
		return t.f == o.f
	}
	return true
}

// String renders the token in script syntax; see FormatToken.
func (t Token) String() string {
	return FormatToken(t)
}

// FormatToken renders a token so that ParseToken returns it unchanged.
// Floats always carry a '.', an exponent, or an inf/nan marker; strings that
// would read back as something else are quoted.
func FormatToken(t Token) string {
	switch t.kind {
	case TokenInt:
		return strconv.FormatInt(t.i, 10)
	case TokenFloat:
		return formatFloat(t.f)
	case TokenString:
		if needsQuote(t.s) {
			return strconv.Quote(t.s)
		}
		return t.s
	}
	return ""
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func needsQuote(s string) bool {
	if s == "" {
		return true
	}
	if strings.ContainsAny(s, " \t\r\n\"'#\\") {
		return true
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return true
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return true
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}

// ParseToken reads one token in script syntax.
func ParseToken(s string) (Token, error) {
	if s == "" {
		return Token{}, fmt.Errorf("empty token")
	}
	if s[0] == '"' {
		u, err := strconv.Unquote(s)
		if err != nil {
			return Token{}, fmt.Errorf("invalid quoted token %s: %w", s, err)
		}
		return Str(u), nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int64(i), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f), nil
	}
	return Str(s), nil
}

type tokenJSON struct {
	Str   *string `json:"str,omitempty"`
	Int   *int64  `json:"int,omitempty"`
	Float *string `json:"float,omitempty"`
}

// MarshalJSON encodes the token with its kind so ints and floats survive the wire.
func (t Token) MarshalJSON() ([]byte, error) {
	var v tokenJSON
	switch t.kind {
	case TokenString:
		v.Str = &t.s
	case TokenInt:
		v.Int = &t.i
	case TokenFloat:
		s := formatFloat(t.f)
		v.Float = &s
	default:
		return nil, fmt.Errorf("cannot marshal invalid token")
	}
	return json.Marshal(v)
}

// UnmarshalJSON decodes a token written by MarshalJSON.
func (t *Token) UnmarshalJSON(data []byte) error {
	var v tokenJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch {
	case v.Str != nil:
		*t = Str(*v.Str)
	case v.Int != nil:
		*t = Int64(*v.Int)
	case v.Float != nil:
		f, err := strconv.ParseFloat(*v.Float, 64)
		if err != nil {
			return fmt.Errorf("invalid float token %q: %w", *v.Float, err)
		}
		*t = Float(f)
	default:
		return fmt.Errorf("token has no value")
	}
	return nil
}

// FormatTokens renders tokens separated by single spaces.
func FormatTokens(tokens []Token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = FormatToken(t)
	}
	return strings.Join(parts, " ")
}

// EqualTokens compares two token sequences.
func EqualTokens(a, b []Token) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
