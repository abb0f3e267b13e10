package comet

import (
	"errors"
	"testing"

	"github.com/ipatka/compound-monitoring/internal/model"
)

func watchedEvents() []EventConfig {
	return []EventConfig{
		{Name: "Supply", Type: model.TypeInfo, Severity: model.SeverityInfo, AmountKey: "amount"},
		{Name: "Withdraw", Type: model.TypeInfo, Severity: model.SeverityInfo, AmountKey: "amount"},
		{Name: "SupplyCollateral", Type: model.TypeInfo, Severity: model.SeverityInfo, AssetKey: "asset", AmountKey: "amount"},
		{Name: "WithdrawCollateral", Type: model.TypeSuspicious, Severity: model.SeverityMedium, AssetKey: "asset", AmountKey: "amount"},
	}
}

func TestBuildCatalog(t *testing.T) {
	marketABI, err := MarketABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	catalog, err := BuildCatalog(marketABI, watchedEvents())
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}

	descriptors := catalog.Descriptors()
	if len(descriptors) != 4 {
		t.Fatalf("expected 4 descriptors, got %d", len(descriptors))
	}

	wantOrder := []string{"Supply", "Withdraw", "SupplyCollateral", "WithdrawCollateral"}
	for i, name := range wantOrder {
		if descriptors[i].Name != name {
			t.Fatalf("descriptor %d: expected %s, got %s", i, name, descriptors[i].Name)
		}
	}

	supply, ok := catalog.ByName("Supply")
	if !ok {
		t.Fatalf("Supply not in catalog")
	}
	if supply.Signature != "Supply(address,address,uint256)" {
		t.Fatalf("signature mismatch: %s", supply.Signature)
	}
	if supply.Source != AssetBase {
		t.Fatalf("Supply should use the base asset")
	}
	if supply.Flow != FlowSupply {
		t.Fatalf("Supply flow mismatch")
	}

	withdrawCollateral, ok := catalog.ByName("WithdrawCollateral")
	if !ok {
		t.Fatalf("WithdrawCollateral not in catalog")
	}
	if withdrawCollateral.Source != AssetCollateral || withdrawCollateral.AssetKey != "asset" {
		t.Fatalf("WithdrawCollateral should resolve collateral via asset arg")
	}
	if withdrawCollateral.Flow != FlowWithdraw {
		t.Fatalf("WithdrawCollateral flow mismatch")
	}
	if withdrawCollateral.Severity != model.SeverityMedium {
		t.Fatalf("severity not carried: %s", withdrawCollateral.Severity)
	}

	if _, ok := catalog.ByTopic(supply.Topic0); !ok {
		t.Fatalf("topic lookup failed")
	}
}

func TestBuildCatalogUnknownEvent(t *testing.T) {
	marketABI, err := MarketABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	_, err = BuildCatalog(marketABI, []EventConfig{
		{Name: "Liquidate", Type: model.TypeExploit, Severity: model.SeverityCritical, AmountKey: "amount"},
	})
	if !errors.Is(err, ErrEventConfig) {
		t.Fatalf("expected ErrEventConfig, got %v", err)
	}
}

func TestBuildCatalogBadArgumentKeys(t *testing.T) {
	marketABI, err := MarketABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	_, err = BuildCatalog(marketABI, []EventConfig{
		{Name: "Supply", Type: model.TypeInfo, Severity: model.SeverityInfo, AmountKey: "value"},
	})
	if !errors.Is(err, ErrEventConfig) {
		t.Fatalf("expected ErrEventConfig for bad amount key, got %v", err)
	}

	_, err = BuildCatalog(marketABI, []EventConfig{
		{Name: "Supply", Type: model.TypeInfo, Severity: model.SeverityInfo, AssetKey: "asset", AmountKey: "amount"},
	})
	if !errors.Is(err, ErrEventConfig) {
		t.Fatalf("expected ErrEventConfig for bad asset key, got %v", err)
	}

	_, err = BuildCatalog(marketABI, []EventConfig{
		{Name: "Supply", Type: model.TypeInfo, Severity: model.SeverityInfo},
	})
	if !errors.Is(err, ErrEventConfig) {
		t.Fatalf("expected ErrEventConfig for missing amount key, got %v", err)
	}
}
