package model

// TokenInfo captures the ERC20 metadata needed to value an event amount.
type TokenInfo struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}
