package model

import (
	"encoding/json"
	"testing"
)

func TestFindingJSONFieldNames(t *testing.T) {
	finding := Finding{
		Name:        "Compound V3 Token Event",
		Description: "test",
		AlertID:     "AE-COMP-CTOKEN-EVENT",
		Type:        TypeInfo,
		Severity:    SeverityInfo,
		Protocol:    "Compound V3",
		TxHash:      "0xabc",
		Metadata:    map[string]string{"symbol": "USDC"},
	}

	raw, err := json.Marshal(finding)
	if err != nil {
		t.Fatalf("marshal finding: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal finding: %v", err)
	}
	for _, key := range []string{"name", "description", "alert_id", "type", "severity", "protocol", "tx_hash", "metadata"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("missing JSON field %s in %s", key, raw)
		}
	}
}
