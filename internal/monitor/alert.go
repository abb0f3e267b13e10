package monitor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/ipatka/compound-monitoring/internal/comet"
	"github.com/ipatka/compound-monitoring/internal/model"
)

// ProtocolMeta identifies the monitored protocol deployment in findings.
type ProtocolMeta struct {
	Name         string
	Abbreviation string
	Developer    string
	Version      string
}

// BuildFinding assembles a finding from a matched log and its resolved
// token, price, and value. Pure: the same inputs always produce the same
// finding.
func BuildFinding(
	desc comet.EventDescriptor,
	token model.TokenInfo,
	usdValue decimal.Decimal,
	parsed model.ParsedLog,
	meta ProtocolMeta,
) model.Finding {
	metadata := map[string]string{
		"symbol":          token.Symbol,
		"contractAddress": parsed.Address,
		"decimals":        strconv.Itoa(int(token.Decimals)),
		"eventName":       desc.Name,
		"usdValue":        usdValue.String(),
		"protocolVersion": meta.Version,
	}
	for name, value := range parsed.Args {
		metadata[name] = formatArgValue(value)
	}

	glyphs := magnitudeGlyphs(usdValue, desc.Flow)

	return model.Finding{
		Name:        fmt.Sprintf("%s Token Event", meta.Name),
		Description: fmt.Sprintf("%s - The %s event was emitted by the %s contract", glyphs, desc.Name, meta.Abbreviation),
		AlertID:     fmt.Sprintf("%s-%s-CTOKEN-EVENT", meta.Developer, meta.Abbreviation),
		Type:        desc.Type,
		Severity:    desc.Severity,
		Protocol:    meta.Name,
		TxHash:      parsed.TxHash,
		Metadata:    metadata,
	}
}

// magnitudeGlyphs builds the decorative value indicator: one whale per power
// of 1000 in the USD value's digit count, plus a directional glyph.
func magnitudeGlyphs(usdValue decimal.Decimal, flow comet.Flow) string {
	whales := (len(usdValue.Abs().String()) - 1) / 3
	glyphs := strings.Repeat("\U0001F433", whales)
	if flow == comet.FlowWithdraw {
		return glyphs + "\U0001F4C9"
	}
	return glyphs + "\U0001F4C8"
}

// StampBlock adds the mined block's number and timestamp to each finding's
// metadata.
func StampBlock(findings []model.Finding, number, timestamp uint64) {
	for i := range findings {
		findings[i].Metadata["blockNumber"] = strconv.FormatUint(number, 10)
		findings[i].Metadata["blockTimestamp"] = strconv.FormatUint(timestamp, 10)
	}
}

func formatArgValue(value interface{}) string {
	switch v := value.(type) {
	case common.Address:
		return v.Hex()
	case common.Hash:
		return v.Hex()
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
