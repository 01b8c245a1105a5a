package mpdprotocol

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// lineRule maps one response line to an update of a decoder's accumulator.
// Exact rules match the whole line; prefix rules match its start and
// receive the remainder.
type lineRule[T any] struct {
	key    string
	prefix bool
	apply  func(acc *T, value string) error
}

// lineTable is an ordered prefix-dispatch table. The first matching rule
// wins and lines no rule matches are ignored.
type lineTable[T any] []lineRule[T]

func (t lineTable[T]) apply(acc *T, line string) error {
	for _, r := range t {
		if !r.prefix {
			if line == r.key {
				return r.apply(acc, "")
			}
			continue
		}
		if value, ok := strings.CutPrefix(line, r.key); ok {
			return r.apply(acc, value)
		}
	}
	return nil
}

// exact builds a rule for a literal line.
func exact[T any](line string, set func(acc *T)) lineRule[T] {
	return lineRule[T]{key: line, apply: func(acc *T, _ string) error {
		set(acc)
		return nil
	}}
}

// prefixed builds a rule for a "key: value" line.
func prefixed[T any](key string, set func(acc *T, value string) error) lineRule[T] {
	return lineRule[T]{key: key, prefix: true, apply: set}
}

// parseUint parses a non-negative integer field.
func parseUint(field, value string) (int, error) {
	n, err := strconv.ParseUint(value, 10, 31)
	if err != nil {
		return 0, newDecodeError(field, value, err)
	}
	return int(n), nil
}

var errNotFinite = errors.New("not a finite non-negative number")

// parseSeconds parses a fractional seconds field and rounds it to the
// nearest whole second.
func parseSeconds(field, value string) (int, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, newDecodeError(field, value, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > math.MaxInt32 {
		return 0, newDecodeError(field, value, errNotFinite)
	}
	return int(math.Round(f)), nil
}

// parseAck decodes "ACK [code@index] {command} message". Malformed ACK lines
// still produce a ServerError carrying the raw text as the message.
func parseAck(line string) *ServerError {
	rest := strings.TrimPrefix(line, AckPrefix)
	se := &ServerError{Message: rest}

	if !strings.HasPrefix(rest, "[") {
		return se
	}
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return se
	}
	codeIndex := rest[1:end]
	rest = strings.TrimSpace(rest[end+1:])

	if code, index, ok := strings.Cut(codeIndex, "@"); ok {
		se.Code, _ = strconv.Atoi(code)
		se.Index, _ = strconv.Atoi(index)
	}

	if strings.HasPrefix(rest, "{") {
		if brace := strings.IndexByte(rest, '}'); brace > 0 {
			se.Command = rest[1:brace]
			rest = strings.TrimSpace(rest[brace+1:])
		}
	}
	se.Message = rest
	return se
}
