package lila

import (
	"strconv"
)

// parseOne reads a single expression from src starting at pos, returning
// the parsed Value, the position just past what was consumed, and a
// ResultCode: Ok, Fail, or FileNotFound when the input runs out before
// any expression begins. List
// parsing uses an explicit stack of in-progress element slices rather
// than recursion, mirroring how deeply nested input is read without
// growing the Go call stack; quoting and the tail-splice shorthand are
// the two spots that do recurse, since each only ever nests by one
// logical expression.
func (vm *VM) parseOne(src []byte, pos int) (Value, int, ResultCode) {
	var stack [][]Value
	cur := pos
	n := len(src)

	for {
		var parsed Value
		haveParsed := false

		if cur >= n {
			if len(stack) > 0 {
				return vm.ErrorValue(ErrParseUnexpectedEndOfFile, "end of file in compound expression"), cur, Fail
			}
			return Value{}, cur, FileNotFound
		}

		c := src[cur]
		cur++

		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f':
			// whitespace, nothing parsed this iteration

		case c == ';':
			if cur >= n || src[cur] != ';' {
				return vm.ErrorValue(ErrParseUnexpectedSemiColon, "unexpected single ';'"), cur, Fail
			}
			for cur < n && !isNewline(src[cur]) {
				cur++
			}
			for cur < n && isNewline(src[cur]) {
				cur++
			}

		case c == '(':
			stack = append(stack, []Value{})

		case c == ')':
			if len(stack) == 0 {
				return vm.ErrorValue(ErrParseUnexpectedEndList, "end of list without beginning"), cur, Fail
			}
			items := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if len(items) > 0 {
				last := items[len(items)-1]
				if last.k == KindSymbol && last.AsSymbol() == "." {
					items = items[:len(items)-1]
					for {
						next, restart, code := vm.parseOne(src, cur)
						cur = restart
						if code == Fail {
							return next, cur, Fail
						}
						if code == FileNotFound {
							break
						}
						items = append(items, next)
					}
				}
			}
			parsed = vm.ListValue(items)
			haveParsed = true

		case c == '"':
			v, next, code := vm.parseString(src, cur)
			if code != Ok {
				return v, next, code
			}
			cur = next
			parsed = v
			haveParsed = true

		case c == '\'':
			quoted, next, code := vm.parseOne(src, cur)
			if code != Ok {
				return quoted, next, code
			}
			cur = next
			parsed = vm.ListValue([]Value{vm.SymbolValue("$quote"), quoted})
			haveParsed = true

		default:
			start := cur - 1
			for cur < n && !isWordBoundary(src[cur]) {
				cur++
			}
			parsed = vm.parseAtom(src[start:cur])
			haveParsed = true
		}

		for cur < n && isWhite(src[cur]) {
			cur++
		}

		if haveParsed {
			if len(stack) > 0 {
				stack[len(stack)-1] = append(stack[len(stack)-1], parsed)
				continue
			}
			return parsed, cur, Ok
		}
	}
}

func isWhite(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f'
}

func isWordBoundary(c byte) bool {
	return isWhite(c) || c == '(' || c == ')'
}

func isNewline(c byte) bool {
	return c == '\r' || c == '\n'
}

// parseString reads the body of a "..."-delimited string starting just
// past the opening quote. \n is the only recognized escape.
func (vm *VM) parseString(src []byte, pos int) (Value, int, ResultCode) {
	var out []byte
	cur := pos
	n := len(src)
	for {
		if cur >= n {
			return vm.ErrorValue(ErrParseUnexpectedNull, "unexpected end of input in string"), cur, Fail
		}
		c := src[cur]
		cur++
		switch c {
		case '\\':
			if cur < n && src[cur] == 'n' {
				out = append(out, '\n')
				cur++
			} else {
				return vm.ErrorValue(ErrParseUnexpectedEscape, "unexpected escape sequence"), cur, Fail
			}
		case '"':
			return vm.StringValue(string(out)), cur, Ok
		default:
			out = append(out, c)
		}
	}
}

// parseAtom classifies a bare token as an Int, a Double, or a Symbol,
// trying each numeric form before falling back to Symbol — the same
// fallback order a strtol-then-strtold-then-symbol chain produces. A
// token starting with a letter is always a Symbol: strconv.ParseFloat
// accepts spellings like "NaN" and "Infinity", which would otherwise
// misclassify an ordinary identifier as a Double.
func (vm *VM) parseAtom(tok []byte) Value {
	s := string(tok)
	if isAlpha(tok[0]) {
		return vm.SymbolValue(s)
	}
	if i, err := strconv.ParseInt(s, 10, 32); err == nil {
		return Int(int32(i))
	}
	if d, err := strconv.ParseFloat(s, 64); err == nil {
		return Double(d)
	}
	return vm.SymbolValue(s)
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
