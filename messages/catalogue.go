package messages

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// NotFound is returned by Message when the key path does not resolve to a string.
	NotFound = "message not found"
	// FormatFailed is returned by Message when a placeholder has no field.
	FormatFailed = "message formatting failed"
)

// ErrInvalidCatalogue is returned when a document is not an object at its root.
var ErrInvalidCatalogue = errors.New("invalid message catalogue")

// Format selects the document syntax accepted by [Parse].
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

//go:embed default.json
var defaultCatalogue []byte

// Catalogue is an immutable tree of message templates.
type Catalogue struct {
	root   map[string]any
	source string
}

// Default returns the built-in catalogue.
func Default() *Catalogue {
	c, err := Parse(defaultCatalogue, FormatJSON)
	if err != nil {
		panic(fmt.Sprintf("messages: embedded catalogue: %v", err))
	}
	c.source = "embedded"
	return c
}

// Load reads a catalogue from a .json, .yaml or .yml file.
func Load(path string) (*Catalogue, error) {
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = FormatJSON
	case ".yaml", ".yml":
		format = FormatYAML
	default:
		return nil, fmt.Errorf("%w: unsupported extension %q", ErrInvalidCatalogue, filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read message catalogue: %w", err)
	}

	c, err := Parse(data, format)
	if err != nil {
		return nil, err
	}
	c.source = path
	return c, nil
}

// Parse decodes a catalogue document. The root must be an object.
func Parse(data []byte, format Format) (*Catalogue, error) {
	var doc any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCatalogue, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCatalogue, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidCatalogue, format)
	}

	root, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected an object at the top level", ErrInvalidCatalogue)
	}
	return &Catalogue{root: root}, nil
}

// Source names where the catalogue was loaded from.
func (c *Catalogue) Source() string {
	if c == nil {
		return ""
	}
	return c.source
}

// Lookup returns the raw template at the key path.
func (c *Catalogue) Lookup(keys []string) (string, bool) {
	if c == nil || len(keys) == 0 {
		return "", false
	}

	var node any = c.root
	for _, key := range keys {
		m, ok := node.(map[string]any)
		if !ok {
			return "", false
		}
		node, ok = m[key]
		if !ok {
			return "", false
		}
	}

	s, ok := node.(string)
	return s, ok
}

// Message resolves the template at keys and substitutes {name} placeholders
// from fields. "{{" and "}}" produce literal braces.
func (c *Catalogue) Message(keys []string, fields map[string]any) string {
	tmpl, ok := c.Lookup(keys)
	if !ok {
		return NotFound
	}
	out, err := render(tmpl, fields)
	if err != nil {
		return FormatFailed
	}
	return out
}

func render(tmpl string, fields map[string]any) (string, error) {
	if !strings.ContainsAny(tmpl, "{}") {
		return tmpl, nil
	}

	var b strings.Builder
	b.Grow(len(tmpl) + 32)

	for i := 0; i < len(tmpl); i++ {
		ch := tmpl[i]
		switch ch {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", errors.New("unterminated placeholder")
			}
			name := tmpl[i+1 : i+1+end]
			v, ok := fields[name]
			if !ok {
				return "", fmt.Errorf("missing field %q", name)
			}
			b.WriteString(fmt.Sprint(v))
			i += end + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				i++
			}
			b.WriteByte('}')
		default:
			b.WriteByte(ch)
		}
	}

	return b.String(), nil
}
