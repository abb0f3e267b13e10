package comet

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ipatka/compound-monitoring/internal/model"
)

// MatchLogs filters logs down to those emitted by the monitored contract
// with a topic0 present in the catalog. Order is preserved.
func MatchLogs(catalog *Catalog, contract common.Address, logs []*types.Log) []*types.Log {
	matched := make([]*types.Log, 0, len(logs))
	for _, log := range logs {
		if log == nil || log.Address != contract || len(log.Topics) == 0 {
			continue
		}
		if _, ok := catalog.ByTopic(log.Topics[0]); ok {
			matched = append(matched, log)
		}
	}
	return matched
}

// ParseLog decodes a matched log's indexed and non-indexed arguments.
func ParseLog(contractABI abi.ABI, desc EventDescriptor, log *types.Log) (model.ParsedLog, error) {
	event, ok := contractABI.Events[desc.Name]
	if !ok {
		return model.ParsedLog{}, fmt.Errorf("event %s not in abi", desc.Name)
	}

	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return model.ParsedLog{}, fmt.Errorf("%s: expected %d topics, got %d", desc.Name, len(indexed)+1, len(log.Topics))
	}

	args := make(map[string]interface{}, len(event.Inputs))
	if err := abi.ParseTopicsIntoMap(args, indexed, log.Topics[1:]); err != nil {
		return model.ParsedLog{}, fmt.Errorf("parse %s topics: %w", desc.Name, err)
	}
	if len(log.Data) > 0 {
		if err := event.Inputs.NonIndexed().UnpackIntoMap(args, log.Data); err != nil {
			return model.ParsedLog{}, fmt.Errorf("unpack %s data: %w", desc.Name, err)
		}
	}

	return model.ParsedLog{
		TxHash:    log.TxHash.Hex(),
		LogIndex:  log.Index,
		Address:   log.Address.Hex(),
		EventName: desc.Name,
		Args:      args,
	}, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
