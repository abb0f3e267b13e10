package model

import "fmt"

// Severity classifies how serious a finding is.
type Severity string

const (
	SeverityInfo     Severity = "Info"
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// FindingType classifies what kind of condition a finding describes.
type FindingType string

const (
	TypeInfo       FindingType = "Info"
	TypeSuspicious FindingType = "Suspicious"
	TypeDegraded   FindingType = "Degraded"
	TypeExploit    FindingType = "Exploit"
)

// ParseSeverity validates a severity label from configuration.
func ParseSeverity(input string) (Severity, error) {
	switch Severity(input) {
	case SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(input), nil
	default:
		return "", fmt.Errorf("unknown severity: %s", input)
	}
}

// ParseFindingType validates a finding type label from configuration.
func ParseFindingType(input string) (FindingType, error) {
	switch FindingType(input) {
	case TypeInfo, TypeSuspicious, TypeDegraded, TypeExploit:
		return FindingType(input), nil
	default:
		return "", fmt.Errorf("unknown finding type: %s", input)
	}
}
