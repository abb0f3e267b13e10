package model

// Finding is a structured alert describing one matched contract event.
type Finding struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	AlertID     string            `json:"alert_id"`
	Type        FindingType       `json:"type"`
	Severity    Severity          `json:"severity"`
	Protocol    string            `json:"protocol"`
	TxHash      string            `json:"tx_hash"`
	Metadata    map[string]string `json:"metadata"`
}
