package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/isyourdayok/backend/services"
)

// AchievementNFT is the minting authority backed by the achievement NFT contract.
type AchievementNFT struct {
	address  common.Address
	contract *bind.BoundContract
	backend  bind.DeployBackend
	key      *ecdsa.PrivateKey
	chainID  *big.Int
	timeout  time.Duration
	log      *zap.Logger

	// one signer: transactions are submitted one at a time to keep nonces ordered
	sendMu sync.Mutex
}

var _ services.MintingAuthority = (*AchievementNFT)(nil)

func NewAchievementNFT(address string, backend Backend, key *ecdsa.PrivateKey, chainID *big.Int, timeout time.Duration, log *zap.Logger) (*AchievementNFT, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &AchievementNFT{
		address:  addr,
		contract: bind.NewBoundContract(addr, nftContractABI, backend, backend, backend),
		backend:  backend,
		key:      key,
		chainID:  chainID,
		timeout:  timeout,
		log:      log,
	}, nil
}

func (n *AchievementNFT) Address() string { return n.address.Hex() }

// HasMinted calls hasUserMinted(address,uint8).
func (n *AchievementNFT) HasMinted(ctx context.Context, owner string, code uint8) (bool, error) {
	var out []interface{}
	err := n.contract.Call(&bind.CallOpts{Context: ctx}, &out, "hasUserMinted", common.HexToAddress(owner), code)
	if err != nil {
		return false, fmt.Errorf("hasUserMinted: %w", err)
	}
	if len(out) != 1 {
		return false, fmt.Errorf("hasUserMinted: unexpected output %v", out)
	}
	minted, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("hasUserMinted: unexpected output type %T", out[0])
	}
	return minted, nil
}

// Mint sends mintAchievement and waits for a successful receipt.
func (n *AchievementNFT) Mint(ctx context.Context, owner string, code uint8, rating int, metadataURI string) (*services.MintResult, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	opts, err := bind.NewKeyedTransactorWithChainID(n.key, n.chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx

	n.sendMu.Lock()
	tx, err := n.contract.Transact(opts, "mintAchievement",
		common.HexToAddress(owner), code, big.NewInt(int64(rating)), metadataURI)
	n.sendMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("send mintAchievement: %w", err)
	}
	n.log.Info("mint transaction sent", zap.String("tx", tx.Hash().Hex()), zap.String("owner", owner))

	receipt, err := bind.WaitMined(ctx, n.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}
	return &services.MintResult{TxHash: tx.Hash().Hex(), Logs: ReceiptLogs(receipt)}, nil
}

// ReceiptLogs converts receipt logs into their hex representation.
func ReceiptLogs(receipt *types.Receipt) []services.ReceiptLog {
	out := make([]services.ReceiptLog, 0, len(receipt.Logs))
	for _, l := range receipt.Logs {
		topics := make([]string, len(l.Topics))
		for i, t := range l.Topics {
			topics[i] = t.Hex()
		}
		out = append(out, services.ReceiptLog{Address: l.Address.Hex(), Topics: topics})
	}
	return out
}
