package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/isyourdayok/backend/services"
)

// PointsContract reads the on-chain points and streak ledger.
type PointsContract struct {
	address  common.Address
	contract *bind.BoundContract
}

var _ services.PointsReader = (*PointsContract)(nil)

// NewPointsContract binds a read-only view of the points contract.
func NewPointsContract(address string, caller bind.ContractCaller) (*PointsContract, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	return &PointsContract{
		address:  addr,
		contract: bind.NewBoundContract(addr, pointsContractABI, caller, nil, nil),
	}, nil
}

// GetUserData calls getUserData(address).
func (p *PointsContract) GetUserData(ctx context.Context, owner string) (*services.ChainUserData, error) {
	var out []interface{}
	if err := p.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getUserData", common.HexToAddress(owner)); err != nil {
		return nil, fmt.Errorf("getUserData: %w", err)
	}
	if len(out) != 5 {
		return nil, fmt.Errorf("getUserData: expected 5 outputs, got %d", len(out))
	}
	vals := make([]int64, 5)
	for i, v := range out {
		n, ok := v.(*big.Int)
		if !ok {
			return nil, fmt.Errorf("getUserData: output %d has type %T", i, v)
		}
		if !n.IsInt64() {
			return nil, fmt.Errorf("getUserData: output %d overflows int64", i)
		}
		vals[i] = n.Int64()
	}
	return &services.ChainUserData{
		TotalPoints:        vals[0],
		JournalStreak:      int(vals[1]),
		MeditationStreak:   int(vals[2]),
		LastJournalDate:    vals[3],
		LastMeditationDate: vals[4],
	}, nil
}

// CanMeditateToday calls canMeditateToday(address).
func (p *PointsContract) CanMeditateToday(ctx context.Context, owner string) (bool, error) {
	var out []interface{}
	if err := p.contract.Call(&bind.CallOpts{Context: ctx}, &out, "canMeditateToday", common.HexToAddress(owner)); err != nil {
		return false, fmt.Errorf("canMeditateToday: %w", err)
	}
	if len(out) != 1 {
		return false, fmt.Errorf("canMeditateToday: unexpected output %v", out)
	}
	ok, isBool := out[0].(bool)
	if !isBool {
		return false, fmt.Errorf("canMeditateToday: unexpected output type %T", out[0])
	}
	return ok, nil
}
