package message

import (
	"bufio"
	"encoding/xml"
	"io"
	"os"
	"strings"
	"time"

	"github.com/codetiger/processor/idgen"
)

const parseBufferSize = 32 * 1024

// Parse decodes the Message's Payload into Data following the canonical
// XML-to-structured-value mapping (elements become objects keyed by tag
// name, attributes fold into sibling keys, repeated child tags become
// arrays, text materialises under "#text"), then checks the result against
// the Payload's declared schema. No typed ISO 20022 decoder exists in this
// corpus, so the generic mapping spec.md prescribes is authoritative rather
// than a schema-specific decoder — see SPEC_FULL.md §4.3.
func (m *Message) Parse(workflowID, taskID, description string) error {
	r, err := m.openPayloadSource()
	if err != nil {
		return err
	}
	if closer, ok := r.(io.Closer); ok {
		defer closer.Close()
	}

	decoded, err := decodeXML(bufio.NewReaderSize(r, parseBufferSize))
	if err != nil {
		return ErrDecode(err)
	}

	if err := validateSchema(m.Payload.Schema, decoded); err != nil {
		return err
	}

	start := time.Now().UTC()
	m.Begin(workflowID, taskID)
	if err := m.Update("data", decoded); err != nil {
		m.Rollback()
		return err
	}
	if m.auditFull() {
		m.Rollback()
		return ErrAuditOverflow()
	}
	m.Commit()

	return m.appendAudit(AuditLog{
		ID:          idgen.Default.Next(),
		StartTime:   start,
		FinishTime:  time.Now().UTC(),
		WorkflowID:  workflowID,
		TaskID:      taskID,
		Description: description,
		Changes: []ChangeLog{
			{Field: "data", NewValue: decoded, Reason: description},
		},
	})
}

func (m *Message) openPayloadSource() (io.Reader, error) {
	switch m.Payload.Storage {
	case StorageInline:
		if len(m.Payload.Content) == 0 {
			return nil, ErrMissingSource()
		}
		return strings.NewReader(string(m.Payload.Content)), nil
	case StorageFile:
		if m.Payload.URL == "" {
			return nil, ErrMissingSource()
		}
		f, err := os.Open(m.Payload.URL)
		if err != nil {
			return nil, ErrIO(err)
		}
		return f, nil
	default:
		return nil, ErrMissingSource()
	}
}

func decodeXML(r io.Reader) (interface{}, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		if err != nil {
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			child, err := decodeXMLElement(dec, start)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{start.Name.Local: child}, nil
		}
	}
}

func decodeXMLElement(dec *xml.Decoder, start xml.StartElement) (map[string]interface{}, error) {
	obj := map[string]interface{}{}
	for _, attr := range start.Attr {
		obj[attr.Name.Local] = attr.Value
	}

	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := decodeXMLElement(dec, t)
			if err != nil {
				return nil, err
			}
			addChild(obj, t.Name.Local, child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if trimmed := strings.TrimSpace(text.String()); trimmed != "" {
				obj["#text"] = trimmed
			}
			return obj, nil
		}
	}
}

func addChild(obj map[string]interface{}, key string, value interface{}) {
	existing, ok := obj[key]
	if !ok {
		obj[key] = value
		return
	}
	if arr, isArr := existing.([]interface{}); isArr {
		obj[key] = append(arr, value)
		return
	}
	obj[key] = []interface{}{existing, value}
}

// validateSchema performs a lightweight structural check rather than full
// XSD validation, which is out of scope per SPEC_FULL.md §4.3.
func validateSchema(schema SchemaKind, decoded interface{}) error {
	switch schema {
	case SchemaISO20022:
		root, ok := decoded.(map[string]interface{})
		if !ok {
			return ErrSchemaValidation("decoded document is not an object")
		}
		if _, hasDocument := root["Document"]; !hasDocument {
			return ErrSchemaValidation("ISO20022 document missing root Document element")
		}
		return nil
	default:
		return nil
	}
}
