package model

import "math/big"

// ParsedLog is a catalog-matched log with its decoded arguments.
type ParsedLog struct {
	TxHash    string
	LogIndex  uint
	Address   string
	EventName string
	Args      map[string]interface{}
}

// Amount returns the named argument as a big integer.
func (p ParsedLog) Amount(key string) (*big.Int, bool) {
	value, ok := p.Args[key]
	if !ok {
		return nil, false
	}
	amount, ok := value.(*big.Int)
	if !ok || amount == nil {
		return nil, false
	}
	return amount, true
}
