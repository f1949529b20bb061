package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ToDocument converts v into a Document holding only JSON-native values.
// Integral numbers become int64 so every backend stores them as integers.
func ToDocument(v interface{}) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	doc, err := DecodeJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("encode document: %T is not an object", v)
	}
	return doc, nil
}

// Normalize rewrites v into the same JSON-native shape ToDocument produces.
func Normalize(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return fixNumbers(out), nil
}

// FromDocument decodes doc into v.
func FromDocument(doc Document, v interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// DecodeJSON parses a JSON object with the ToDocument number rules.
func DecodeJSON(raw []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	for k, v := range doc {
		doc[k] = fixNumbers(v)
	}
	return doc, nil
}

func fixNumbers(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]interface{}:
		for k, item := range val {
			val[k] = fixNumbers(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = fixNumbers(item)
		}
		return val
	}
	return v
}
