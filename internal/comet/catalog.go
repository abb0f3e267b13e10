package comet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ipatka/compound-monitoring/internal/model"
)

// ErrEventConfig marks a fatal catalog construction failure. It is returned
// when a configured event is absent from the ABI or references an argument
// the event does not carry.
var ErrEventConfig = errors.New("invalid event configuration")

// AssetSource tells the pipeline how to resolve the token behind an event.
type AssetSource int

const (
	// AssetBase uses the market's base token, resolved once at startup.
	AssetBase AssetSource = iota
	// AssetCollateral resolves the token address carried in the log itself.
	AssetCollateral
)

// Flow is the balance direction of an event.
type Flow int

const (
	FlowSupply Flow = iota
	FlowWithdraw
)

// EventConfig is one entry of the configured event classification table.
type EventConfig struct {
	Name      string
	Type      model.FindingType
	Severity  model.Severity
	AssetKey  string
	AmountKey string
}

// EventDescriptor is a catalog entry: a watched event with its signature,
// classification, and argument bindings. Immutable after BuildCatalog.
type EventDescriptor struct {
	Name      string
	Signature string
	Topic0    common.Hash
	Type      model.FindingType
	Severity  model.Severity
	Source    AssetSource
	AssetKey  string
	AmountKey string
	Flow      Flow
}

// Catalog holds the watched event descriptors in configuration order.
type Catalog struct {
	descriptors []EventDescriptor
	byTopic     map[common.Hash]int
}

// BuildCatalog resolves each configured event against the contract ABI.
func BuildCatalog(contractABI abi.ABI, events []EventConfig) (*Catalog, error) {
	descriptors := make([]EventDescriptor, 0, len(events))
	byTopic := make(map[common.Hash]int, len(events))

	for _, entry := range events {
		event, ok := contractABI.Events[entry.Name]
		if !ok {
			return nil, fmt.Errorf("%w: event %s not in abi", ErrEventConfig, entry.Name)
		}
		if entry.AmountKey == "" {
			return nil, fmt.Errorf("%w: event %s has no amount key", ErrEventConfig, entry.Name)
		}
		if !eventHasArgument(event, entry.AmountKey) {
			return nil, fmt.Errorf("%w: event %s has no argument %s", ErrEventConfig, entry.Name, entry.AmountKey)
		}

		source := AssetBase
		if entry.AssetKey != "" {
			if !eventHasArgument(event, entry.AssetKey) {
				return nil, fmt.Errorf("%w: event %s has no argument %s", ErrEventConfig, entry.Name, entry.AssetKey)
			}
			source = AssetCollateral
		}

		flow := FlowSupply
		if strings.HasPrefix(entry.Name, "Withdraw") {
			flow = FlowWithdraw
		}

		if _, dup := byTopic[event.ID]; dup {
			return nil, fmt.Errorf("%w: event %s configured twice", ErrEventConfig, entry.Name)
		}

		byTopic[event.ID] = len(descriptors)
		descriptors = append(descriptors, EventDescriptor{
			Name:      entry.Name,
			Signature: event.Sig,
			Topic0:    event.ID,
			Type:      entry.Type,
			Severity:  entry.Severity,
			Source:    source,
			AssetKey:  entry.AssetKey,
			AmountKey: entry.AmountKey,
			Flow:      flow,
		})
	}

	return &Catalog{descriptors: descriptors, byTopic: byTopic}, nil
}

// Descriptors returns catalog entries in configuration order.
func (c *Catalog) Descriptors() []EventDescriptor {
	return c.descriptors
}

// ByName returns the descriptor for an event name.
func (c *Catalog) ByName(name string) (EventDescriptor, bool) {
	for _, desc := range c.descriptors {
		if desc.Name == name {
			return desc, true
		}
	}
	return EventDescriptor{}, false
}

// ByTopic returns the descriptor matching a log's topic0.
func (c *Catalog) ByTopic(topic0 common.Hash) (EventDescriptor, bool) {
	idx, ok := c.byTopic[topic0]
	if !ok {
		return EventDescriptor{}, false
	}
	return c.descriptors[idx], true
}

func eventHasArgument(event abi.Event, name string) bool {
	for _, input := range event.Inputs {
		if input.Name == name {
			return true
		}
	}
	return false
}
