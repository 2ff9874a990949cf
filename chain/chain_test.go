package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

// fakeCaller answers eth_call with pre-packed return data keyed by method id.
type fakeCaller struct {
	results map[string][]byte
	err     error
	calls   []ethereum.CallMsg
}

func (f *fakeCaller) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls = append(f.calls, msg)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[string(msg.Data[:4])], nil
}

func TestPointsContractGetUserData(t *testing.T) {
	method := pointsContractABI.Methods["getUserData"]
	out, err := method.Outputs.Pack(big.NewInt(120), big.NewInt(7), big.NewInt(3), big.NewInt(1740787200), big.NewInt(0))
	require.NoError(t, err)
	caller := &fakeCaller{results: map[string][]byte{string(method.ID): out}}

	p, err := NewPointsContract("0x00000000000000000000000000000000000000c1", caller)
	require.NoError(t, err)

	data, err := p.GetUserData(context.Background(), "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	require.NoError(t, err)
	require.EqualValues(t, 120, data.TotalPoints)
	require.Equal(t, 7, data.JournalStreak)
	require.Equal(t, 3, data.MeditationStreak)
	require.EqualValues(t, 1740787200, data.LastJournalDate)
	require.Len(t, caller.calls, 1)
	require.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000c1"), *caller.calls[0].To)
}

func TestPointsContractCanMeditateToday(t *testing.T) {
	method := pointsContractABI.Methods["canMeditateToday"]
	out, err := method.Outputs.Pack(true)
	require.NoError(t, err)
	caller := &fakeCaller{results: map[string][]byte{string(method.ID): out}}

	p, err := NewPointsContract("0x00000000000000000000000000000000000000c1", caller)
	require.NoError(t, err)
	ok, err := p.CanMeditateToday(context.Background(), "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	require.NoError(t, err)
	require.True(t, ok)

	caller.err = errors.New("rpc down")
	_, err = p.CanMeditateToday(context.Background(), "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	require.Error(t, err)
}

func TestNewPointsContractRejectsBadAddress(t *testing.T) {
	_, err := NewPointsContract("points", &fakeCaller{})
	require.Error(t, err)
}

func TestABIDeclaresContractMethods(t *testing.T) {
	for _, name := range []string{"hasUserMinted", "mintAchievement"} {
		_, ok := nftContractABI.Methods[name]
		require.True(t, ok, name)
	}
	mint := nftContractABI.Methods["mintAchievement"]
	require.Equal(t, "mintAchievement(address,uint8,uint256,string)", mint.Sig)

	_, err := nftContractABI.Pack("mintAchievement",
		common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"), uint8(2), big.NewInt(85), "https://isyourdayok.com/nft-metadata/meditation-7.json")
	require.NoError(t, err)
}

func TestReceiptLogs(t *testing.T) {
	contract := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	receipt := &types.Receipt{Logs: []*types.Log{
		{Address: contract, Topics: []common.Hash{
			nftContractABI.Events["AchievementMinted"].ID,
			common.BigToHash(big.NewInt(17)),
		}},
	}}
	logs := ReceiptLogs(receipt)
	require.Len(t, logs, 1)
	require.Equal(t, contract.Hex(), logs[0].Address)
	require.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000011", logs[0].Topics[1])
}

func TestParsePrivateKey(t *testing.T) {
	key, err := ParsePrivateKey("0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	require.NotNil(t, key)

	_, err = ParsePrivateKey("")
	require.Error(t, err)
	_, err = ParsePrivateKey("xyz")
	require.Error(t, err)
}
