package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Param is a single entry of a parameter map
type Param struct {
	Key   string
	Value any
}

// Params is an ordered parameter map. A value is a scalar, nil (NULL),
// or nested Params constraining the entity reached through an association.
type Params []Param

// P builds Params from alternating keys and values:
//
//	query.P("title", "Hello", "author", query.P("email", "a@b.com"))
func P(pairs ...any) Params {
	if len(pairs)%2 != 0 {
		panic("query: P expects key/value pairs")
	}
	p := make(Params, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("query: P key %v is not a string", pairs[i]))
		}
		p = p.Set(key, pairs[i+1])
	}
	return p
}

func (p Params) Len() int {
	return len(p)
}

func (p Params) Get(key string) (any, bool) {
	for _, param := range p {
		if param.Key == key {
			return param.Value, true
		}
	}
	return nil, false
}

// Set replaces the value of an existing key in place, otherwise appends.
func (p Params) Set(key string, value any) Params {
	for i := range p {
		if p[i].Key == key {
			p[i].Value = value
			return p
		}
	}
	return append(p, Param{Key: key, Value: value})
}

// Clone copies the top level so that Set on the copy leaves p untouched.
func (p Params) Clone() Params {
	c := make(Params, len(p))
	copy(c, p)
	return c
}

func (p Params) Keys() []string {
	keys := make([]string, len(p))
	for i, param := range p {
		keys[i] = param.Key
	}
	return keys
}

// asParams reports whether v is a nested parameter map.
// Plain maps have no declared order, so their keys are walked sorted.
func asParams(v any) (Params, bool) {
	switch m := v.(type) {
	case Params:
		return m, true
	case map[string]any:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		p := make(Params, 0, len(m))
		for _, k := range keys {
			p = append(p, Param{Key: k, Value: m[k]})
		}
		return p, true
	}
	return nil, false
}

// isNull treats the nil interface and nil pointers, maps, slices as NULL.
func isNull(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func (p Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, param := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(param.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(param.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p Params) String() string {
	data, err := p.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%v", []Param(p))
	}
	return string(data)
}

// ParseJSON decodes a JSON object keeping key order. Nested objects become Params,
// integral numbers int64 and other numbers float64.
func ParseJSON(data []byte) (Params, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(err, "query: unable to parse params")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("query: params must be a JSON object")
	}
	p, err := decodeObject(dec)
	if err != nil {
		return nil, errors.Wrap(err, "query: unable to parse params")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("query: trailing data after params")
	}
	return p, nil
}

func decodeObject(dec *json.Decoder) (Params, error) {
	p := Params{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.Errorf("unexpected token %v", tok)
		}
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		p = p.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			var list []any
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				list = append(list, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return list, nil
		}
		return nil, errors.Errorf("unexpected delimiter %v", t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		return t.Float64()
	default:
		return t, nil
	}
}

// UnmarshalYAML decodes a mapping node keeping key order.
func (p *Params) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return errors.Errorf("query: line %d: params must be a mapping", node.Line)
	}
	result := Params{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		value, err := decodeYAMLValue(valueNode)
		if err != nil {
			return err
		}
		result = result.Set(keyNode.Value, value)
	}
	*p = result
	return nil
}

func decodeYAMLValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.MappingNode:
		var nested Params
		if err := nested.UnmarshalYAML(node); err != nil {
			return nil, err
		}
		return nested, nil
	case yaml.AliasNode:
		return decodeYAMLValue(node.Alias)
	case yaml.ScalarNode:
		if node.Tag == "!!null" || strings.EqualFold(node.Value, "null") && node.Tag == "" {
			return nil, nil
		}
	}
	var value any
	if err := node.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}
