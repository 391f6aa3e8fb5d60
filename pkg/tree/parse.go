package tree

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
)

// Parse decodes a single JSON value, keeping object keys in document order.
// Duplicate keys keep their first position and their last value.
func Parse(data []byte) (Value, error) {
	raw, dataType, end, err := jsonparser.Get(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	if len(bytes.TrimSpace(data[end:])) != 0 {
		return nil, fmt.Errorf("%w: trailing data after offset %d", ErrSyntax, end)
	}
	return parseValue(raw, dataType)
}

// ParseObject decodes data and requires the top-level value to be an object.
func ParseObject(data []byte) (*Object, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("%w: expected object, got %s", ErrSyntax, v.Kind())
	}
	return obj, nil
}

func parseValue(raw []byte, dataType jsonparser.ValueType) (Value, error) {
	switch dataType {
	case jsonparser.Null:
		return Null{}, nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		return Bool(b), nil
	case jsonparser.Number:
		f, err := jsonparser.ParseFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		return Number(f), nil
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		return String(s), nil
	case jsonparser.Array:
		return parseArray(raw)
	case jsonparser.Object:
		return parseObject(raw)
	}
	return nil, fmt.Errorf("%w: unexpected token %q", ErrSyntax, raw)
}

func parseArray(raw []byte) (Array, error) {
	arr := Array{}
	var inner error
	_, err := jsonparser.ArrayEach(raw, func(value []byte, dataType jsonparser.ValueType, _ int, err error) {
		if inner != nil {
			return
		}
		if err != nil {
			inner = fmt.Errorf("%w: %v", ErrSyntax, err)
			return
		}
		v, err := parseValue(value, dataType)
		if err != nil {
			inner = err
			return
		}
		arr = append(arr, v)
	})
	if inner != nil {
		return nil, inner
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return arr, nil
}

func parseObject(raw []byte) (*Object, error) {
	obj := NewObject()
	err := jsonparser.ObjectEach(raw, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		// keys arrive already unescaped
		v, err := parseValue(value, dataType)
		if err != nil {
			return err
		}
		obj.Set(string(key), v)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSyntax) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return obj, nil
}
