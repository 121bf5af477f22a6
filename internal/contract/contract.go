// Package contract holds the persisted API contract: an ordered
// path -> method -> Entry map plus generation metadata.
package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Contract is an ordered mapping from normalized path to HTTP method to Entry.
// Paths and methods keep their insertion order when serialized.
type Contract struct {
	paths    []string
	methods  map[string][]string
	entries  map[string]map[string]*Entry
	Metadata *Metadata
}

// New creates an empty contract
func New() *Contract {
	return &Contract{
		methods: make(map[string][]string),
		entries: make(map[string]map[string]*Entry),
	}
}

// NormalizePath returns path with exactly one leading slash and no trailing one
func NormalizePath(path string) string {
	path = "/" + strings.Trim(strings.TrimSpace(path), "/")
	return path
}

// Set stores the entry for (path, method), replacing any previous one while
// keeping its position.
func (c *Contract) Set(path, method string, e *Entry) {
	path = NormalizePath(path)
	method = strings.ToUpper(method)
	byMethod, ok := c.entries[path]
	if !ok {
		byMethod = make(map[string]*Entry)
		c.entries[path] = byMethod
		c.paths = append(c.paths, path)
	}
	if _, exists := byMethod[method]; !exists {
		c.methods[path] = append(c.methods[path], method)
	}
	byMethod[method] = e
}

// Get returns the entry for (path, method)
func (c *Contract) Get(path, method string) (*Entry, bool) {
	byMethod, ok := c.entries[NormalizePath(path)]
	if !ok {
		return nil, false
	}
	e, ok := byMethod[strings.ToUpper(method)]
	return e, ok
}

// HasPath reports whether any method is documented for path
func (c *Contract) HasPath(path string) bool {
	_, ok := c.entries[NormalizePath(path)]
	return ok
}

// Paths returns the documented paths in insertion order
func (c *Contract) Paths() []string {
	return append([]string(nil), c.paths...)
}

// Methods returns the methods documented for path in insertion order
func (c *Contract) Methods(path string) []string {
	return append([]string(nil), c.methods[NormalizePath(path)]...)
}

// Len returns the number of (path, method) entries
func (c *Contract) Len() int {
	n := 0
	for _, m := range c.methods {
		n += len(m)
	}
	return n
}

// Each calls fn for every entry in order
func (c *Contract) Each(fn func(path, method string, e *Entry)) {
	for _, p := range c.paths {
		for _, m := range c.methods[p] {
			fn(p, m, c.entries[p][m])
		}
	}
}

// Sorted returns a copy with paths and methods in lexical order
func (c *Contract) Sorted() *Contract {
	out := New()
	paths := c.Paths()
	sort.Strings(paths)
	for _, p := range paths {
		methods := c.Methods(p)
		sort.Strings(methods)
		for _, m := range methods {
			out.Set(p, m, c.entries[p][m])
		}
	}
	out.Metadata = c.Metadata
	return out
}

// MarshalJSON writes paths in order followed by _metadata
func (c *Contract) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	writeKey := func(key string) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		return encodeTo(&buf, key)
	}

	for _, p := range c.paths {
		if err := writeKey(p); err != nil {
			return nil, err
		}
		buf.WriteString(":{")
		for i, m := range c.methods[p] {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeTo(&buf, m); err != nil {
				return nil, err
			}
			buf.WriteByte(':')
			if err := encodeTo(&buf, c.entries[p][m]); err != nil {
				return nil, fmt.Errorf("encode %s %s: %w", m, p, err)
			}
		}
		buf.WriteByte('}')
	}

	if c.Metadata != nil {
		if err := writeKey(MetadataKey); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encodeTo(&buf, c.Metadata); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encodeTo writes v without HTML escaping and without the trailing newline
func encodeTo(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// marshalUnescaped is json.Marshal without HTML escaping. Nested
// MarshalJSON methods must use it too: the outer encoder keeps their bytes
// as they are only when it does not escape either.
func marshalUnescaped(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeTo(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a contract preserving path and method order
func (c *Contract) UnmarshalJSON(data []byte) error {
	fresh := New()
	dec := json.NewDecoder(bytes.NewReader(data))

	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return err
		}
		if key == MetadataKey {
			var md Metadata
			if err := dec.Decode(&md); err != nil {
				return fmt.Errorf("invalid %s: %w", MetadataKey, err)
			}
			fresh.Metadata = &md
			continue
		}

		if err := expectDelim(dec, '{'); err != nil {
			return fmt.Errorf("path %s: %w", key, err)
		}
		for dec.More() {
			method, err := readKey(dec)
			if err != nil {
				return err
			}
			var e Entry
			if err := dec.Decode(&e); err != nil {
				return fmt.Errorf("invalid entry %s %s: %w", method, key, err)
			}
			fresh.Set(key, method, &e)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return err
	}

	*c = *fresh
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("unexpected end of contract")
		}
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}
