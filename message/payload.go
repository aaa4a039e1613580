package message

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Storage identifies whether a Payload carries its bytes inline or as a
// reference to an external file.
type Storage string

const (
	StorageInline Storage = "Inline"
	StorageFile   Storage = "File"
)

// Format identifies the wire encoding of a Payload's content.
type Format string

const (
	FormatXML  Format = "Xml"
	FormatJSON Format = "Json"
)

// SchemaKind identifies the business schema a Payload's content is expected
// to conform to. Only ISO20022 is exercised by this system today; the type
// stays a plain string so operators can register further schema names
// without a code change.
type SchemaKind string

const (
	SchemaISO20022 SchemaKind = "ISO20022"
)

// Encoding identifies the text encoding used to interpret Payload content
// bytes. Serialises to its canonical IANA-style name rather than the Go
// constant name (Utf8 -> "UTF-8").
type Encoding string

const (
	EncodingUTF8  Encoding = "Utf8"
	EncodingUTF16 Encoding = "Utf16"
	EncodingUTF32 Encoding = "Utf32"
	EncodingASCII Encoding = "Ascii"
)

var encodingWire = map[Encoding]string{
	EncodingUTF8:  "UTF-8",
	EncodingUTF16: "UTF-16",
	EncodingUTF32: "UTF-32",
	EncodingASCII: "ASCII",
}

var encodingFromWire = func() map[string]Encoding {
	m := make(map[string]Encoding, len(encodingWire))
	for k, v := range encodingWire {
		m[v] = k
	}
	return m
}()

func (e Encoding) MarshalJSON() ([]byte, error) {
	wire, ok := encodingWire[e]
	if !ok {
		wire = string(e)
	}
	return json.Marshal(wire)
}

func (e *Encoding) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if enc, ok := encodingFromWire[s]; ok {
		*e = enc
		return nil
	}
	*e = Encoding(s)
	return nil
}

// Payload is the byte/URL container carried by a Message, immutable after
// construction.
type Payload struct {
	Storage  Storage    `json:"storage"`
	Content  []byte     `json:"content,omitempty"`
	URL      string     `json:"url,omitempty"`
	Format   Format     `json:"format"`
	Schema   SchemaKind `json:"schema"`
	Encoding Encoding   `json:"encoding"`
	Size     int64      `json:"size"`
}

// payloadWire mirrors Payload but serialises Content as base64, matching
// Go's default []byte JSON behaviour; it exists purely to make that explicit
// and documented rather than relying on the implicit encoding/json default.
type payloadWire struct {
	Storage  Storage    `json:"storage"`
	Content  string     `json:"content,omitempty"`
	URL      string     `json:"url,omitempty"`
	Format   Format     `json:"format"`
	Schema   SchemaKind `json:"schema"`
	Encoding Encoding   `json:"encoding"`
	Size     int64      `json:"size"`
}

func (p Payload) MarshalJSON() ([]byte, error) {
	w := payloadWire{
		Storage:  p.Storage,
		URL:      p.URL,
		Format:   p.Format,
		Schema:   p.Schema,
		Encoding: p.Encoding,
		Size:     p.Size,
	}
	if len(p.Content) > 0 {
		w.Content = base64.StdEncoding.EncodeToString(p.Content)
	}
	return json.Marshal(w)
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	var w payloadWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Storage = w.Storage
	p.URL = w.URL
	p.Format = w.Format
	p.Schema = w.Schema
	p.Encoding = w.Encoding
	p.Size = w.Size
	if w.Content != "" {
		raw, err := base64.StdEncoding.DecodeString(w.Content)
		if err != nil {
			return fmt.Errorf("payload: decoding content: %w", err)
		}
		p.Content = raw
	}
	return nil
}

// NewInlinePayload builds a Payload carrying content directly, mirroring the
// original's Payload::new_inline constructor. Size reflects the actual
// content length rather than the source quirk of leaving it at zero.
func NewInlinePayload(content []byte, format Format, schema SchemaKind, encoding Encoding) Payload {
	return Payload{
		Storage:  StorageInline,
		Content:  content,
		Format:   format,
		Schema:   schema,
		Encoding: encoding,
		Size:     int64(len(content)),
	}
}

// NewFilePayload builds a Payload referencing an external file by URL.
func NewFilePayload(url string, format Format, schema SchemaKind, encoding Encoding) Payload {
	return Payload{
		Storage:  StorageFile,
		URL:      url,
		Format:   format,
		Schema:   schema,
		Encoding: encoding,
	}
}
