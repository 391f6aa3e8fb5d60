package tree

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Marshal renders v as compact JSON. The output is a pure function of the tree,
// so equal trees always produce identical bytes.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := write(&buf, v, "", ""); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalIndent renders v with one line per member, nested by indent.
func MarshalIndent(v Value, indent string) ([]byte, error) {
	var buf bytes.Buffer
	if err := write(&buf, v, indent, "\n"); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func write(buf *bytes.Buffer, v Value, indent, prefix string) error {
	switch tv := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		if tv {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		s, err := FormatNumber(float64(tv))
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case String:
		writeString(buf, string(tv))
	case Array:
		if len(tv) == 0 {
			buf.WriteString("[]")
			return nil
		}
		inner := prefix + indent
		buf.WriteByte('[')
		for i, elem := range tv {
			if i > 0 {
				buf.WriteByte(',')
			}
			if indent != "" {
				buf.WriteString(inner)
			}
			if err := write(buf, elem, indent, inner); err != nil {
				return err
			}
		}
		if indent != "" {
			buf.WriteString(prefix)
		}
		buf.WriteByte(']')
	case *Object:
		if tv.Len() == 0 {
			buf.WriteString("{}")
			return nil
		}
		inner := prefix + indent
		buf.WriteByte('{')
		for i, k := range tv.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if indent != "" {
				buf.WriteString(inner)
			}
			writeString(buf, k)
			buf.WriteByte(':')
			if indent != "" {
				buf.WriteByte(' ')
			}
			elem, _ := tv.Get(k)
			if err := write(buf, elem, indent, inner); err != nil {
				return err
			}
		}
		if indent != "" {
			buf.WriteString(prefix)
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("%w: %T", ErrUnsupported, v)
	}
	return nil
}

// writeString quotes s the way JSON.stringify does: only the quote, the
// backslash and control characters are escaped, so U+2028, U+2029 and HTML
// characters stay raw. Bytes that are not valid UTF-8 are written as U+FFFD.
func writeString(buf *bytes.Buffer, s string) {
	const hex = "0123456789abcdef"
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r < 0x20:
			buf.WriteString(`\u00`)
			buf.WriteByte(hex[r>>4])
			buf.WriteByte(hex[r&0xf])
		default:
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}

// FormatNumber renders f the way JavaScript's Number#toString does for the finite range:
// plain notation between 1e-6 and 1e21, exponent notation outside it.
func FormatNumber(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %v", ErrNonFinite, f)
	}
	if f == 0 {
		return "0", nil
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	return mantissa + "e" + sign + digits, nil
}
