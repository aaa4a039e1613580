package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pacs008XML = `<Document xmlns="urn:iso:std:iso:20022:tech:xsd:pacs.008.001.07">
  <FIToFICstmrCdtTrf>
    <GrpHdr>
      <MsgId>MSG-0001</MsgId>
    </GrpHdr>
  </FIToFICstmrCdtTrf>
</Document>`

func newPacs008Message() *Message {
	payload := NewInlinePayload([]byte(pacs008XML), FormatXML, SchemaISO20022, EncodingUTF8)
	return New("tenant1", "api", payload, map[string]interface{}{})
}

// Scenario 1: Create -> Parse -> Enrich.
func TestScenarioParseThenEnrich(t *testing.T) {
	m := newPacs008Message()
	require.Equal(t, 1, len(m.Audit))
	require.Equal(t, 1, m.Version)

	require.NoError(t, m.Parse("wf1", "parse1", "Parsed pacs.008 message"))
	assert.Equal(t, 2, len(m.Audit))
	assert.Equal(t, 2, m.Version)

	rules := []EnrichRule{
		{Field: "data.metadata.processing_date", Logic: map[string]interface{}{"var": []interface{}{"processing_date"}}},
		{Field: "data.metadata.transaction_type", Logic: map[string]interface{}{"var": []interface{}{"transaction_type"}}},
	}
	context := map[string]interface{}{
		"processing_date":  "2024-01-18T10:30:00Z",
		"transaction_type": "INSTANT_CREDIT_TRANSFER",
	}
	require.NoError(t, m.Enrich("wf1", "enrich1", "Enriched processing metadata", rules, context))

	assert.Equal(t, 3, len(m.Audit))
	assert.Equal(t, 3, m.Version)

	data := m.Data.(map[string]interface{})
	metadata := data["metadata"].(map[string]interface{})
	assert.Equal(t, "2024-01-18T10:30:00Z", metadata["processing_date"])
	assert.Equal(t, "INSTANT_CREDIT_TRANSFER", metadata["transaction_type"])
}

// Scenario 2: Enrich atomicity on rule-evaluation failure.
func TestScenarioEnrichAtomicity(t *testing.T) {
	m := newPacs008Message()
	require.NoError(t, m.Parse("wf1", "parse1", "Parsed pacs.008 message"))

	before := deepCopyValue(m.Data)
	auditLenBefore := len(m.Audit)

	rules := []EnrichRule{
		{Field: "data.metadata.ok", Logic: map[string]interface{}{"var": []interface{}{"ok"}}},
		{Field: "data.metadata.bad", Logic: map[string]interface{}{"nonexistent_operator": nil}},
	}
	err := m.Enrich("wf1", "enrich1", "desc", rules, map[string]interface{}{"ok": "yes"})
	require.Error(t, err)

	assert.Equal(t, before, m.Data)
	assert.Equal(t, auditLenBefore, len(m.Audit))
	require.NotNil(t, m.Progress.PrevStatusCode)
	assert.Equal(t, StatusCodeFailure, *m.Progress.PrevStatusCode)
}

// Scenario 3: Update path rejection.
func TestScenarioUpdatePathRejection(t *testing.T) {
	m := newPacs008Message()
	before := m.Data

	m.Begin("wf1", "t1")
	err := m.Update("metadata.x", "value")
	require.Error(t, err)

	var kindErr KindError
	require.ErrorAs(t, err, &kindErr)
	assert.Equal(t, "InvalidFieldPath", kindErr.Kind())
	assert.Equal(t, before, m.Data)
}

// Scenario 4: auto-vivification.
func TestScenarioAutoVivification(t *testing.T) {
	m := New("tenant1", "api", NewInlinePayload([]byte("<a/>"), FormatXML, SchemaISO20022, EncodingUTF8), nil)
	m.Data = map[string]interface{}{}

	rules := []EnrichRule{
		{Field: "data.a.b.c", Logic: float64(7)},
	}
	require.NoError(t, m.Enrich("wf1", "enrich1", "desc", rules, nil))

	assert.Equal(t, map[string]interface{}{
		"a": map[string]interface{}{"b": map[string]interface{}{"c": float64(7)}},
	}, m.Data)
}

func TestTransactionUndoRestoresOriginal(t *testing.T) {
	m := New("t", "o", NewInlinePayload([]byte("<a/>"), FormatXML, SchemaISO20022, EncodingUTF8), nil)
	m.Data = map[string]interface{}{"a": float64(1)}
	original := deepCopyValue(m.Data)

	m.Begin("wf1", "t1")
	require.NoError(t, m.Update("data.a", float64(2)))
	require.NoError(t, m.Update("data.b.c", float64(3)))
	m.Rollback()

	assert.Equal(t, original, m.Data)
}

// Workflow convergence: once Audit has reached the 100-entry runaway-loop
// bound, the next task must be rejected with AuditOverflow and must leave
// Data, Version, and Audit byte-identical to their pre-call values — the
// atomicity property applies to this guard the same as any other failure.
func TestAuditOverflowRejectsTaskAndPreservesState(t *testing.T) {
	m := newPacs008Message()
	require.NoError(t, m.Parse("wf1", "parse1", "Parsed pacs.008 message"))

	for len(m.Audit) < maxAuditEntries {
		m.Audit = append(m.Audit, AuditLog{ID: int64(len(m.Audit)), TaskID: "filler"})
	}
	m.Version = len(m.Audit)

	before := deepCopyValue(m.Data)
	auditLenBefore := len(m.Audit)
	versionBefore := m.Version

	rules := []EnrichRule{
		{Field: "data.metadata.late", Logic: map[string]interface{}{"var": []interface{}{"late"}}},
	}
	err := m.Enrich("wf1", "enrich-overflow", "desc", rules, map[string]interface{}{"late": "yes"})
	require.Error(t, err)

	var kindErr KindError
	require.ErrorAs(t, err, &kindErr)
	assert.Equal(t, "AuditOverflow", kindErr.Kind())

	assert.Equal(t, before, m.Data)
	assert.Equal(t, auditLenBefore, len(m.Audit))
	assert.Equal(t, versionBefore, m.Version)
}

func deepCopyValue(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, val := range x {
			out[k] = deepCopyValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, val := range x {
			out[i] = deepCopyValue(val)
		}
		return out
	default:
		return v
	}
}
