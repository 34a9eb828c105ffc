package xmldb

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// Codec converts a typed object graph to and from a structured document.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

const (
	xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"
	xsdNamespace = "http://www.w3.org/2001/XMLSchema"
)

// XMLCodec is the default Codec, backed by encoding/xml.
//
// Unless OmitDefaultNamespace is set, the root element carries the
// xmlns:xsi and xmlns:xsd schema attributes.
type XMLCodec struct {
	OmitDefaultNamespace bool
	// Indent is the per-level indentation. Empty means two spaces.
	Indent string
}

// Marshal implements Codec.
func (c XMLCodec) Marshal(v any) ([]byte, error) {
	indent := c.Indent
	if indent == "" {
		indent = "  "
	}
	body, err := xml.MarshalIndent(v, "", indent)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	if !c.OmitDefaultNamespace {
		body = addRootAttrs(body, `xmlns:xsi="`+xsiNamespace+`" xmlns:xsd="`+xsdNamespace+`"`)
	}
	var buf bytes.Buffer
	buf.Grow(len(xml.Header) + len(body) + 1)
	buf.WriteString(xml.Header)
	buf.Write(body)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Unmarshal implements Codec.
func (c XMLCodec) Unmarshal(data []byte, v any) error {
	if err := xml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return nil
}

// addRootAttrs inserts attrs into the first start tag of body. encoding/xml
// escapes '>' inside attribute values so the first '>' closes the root tag.
func addRootAttrs(body []byte, attrs string) []byte {
	end := bytes.IndexByte(body, '>')
	if end < 0 {
		return body
	}
	if end > 0 && body[end-1] == '/' {
		end--
	}
	out := make([]byte, 0, len(body)+len(attrs)+1)
	out = append(out, body[:end]...)
	out = append(out, ' ')
	out = append(out, attrs...)
	return append(out, body[end:]...)
}
