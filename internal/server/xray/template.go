package xray

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/boleyla/panel/internal/common"
)

// LoadTemplate reads the base document. Numbers are kept as json.Number so
// they are written back exactly as the administrator wrote them.
func LoadTemplate(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorTemplate, err)
	}
	return ParseTemplate(data)
}

// ParseTemplate decodes a base document that must be a single JSON object.
func ParseTemplate(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorTemplate, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after the document", common.ErrorTemplate)
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: document is not a JSON object", common.ErrorTemplate)
	}
	return m, nil
}

// Encode writes doc as 2-space indented JSON with a trailing newline. Map
// keys are sorted, so equal documents encode to equal bytes.
func Encode(doc map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
