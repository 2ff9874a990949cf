package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/isyourdayok/backend/config"
)

// Backend is what the contract adapters need from a node connection. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Client holds the node connection and signing settings shared by the contract adapters.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
	timeout time.Duration
	log     *zap.Logger
}

// Dial connects to the configured RPC endpoint and checks the chain id.
func Dial(ctx context.Context, cfg config.AppConfig, log *zap.Logger) (*Client, error) {
	if cfg.ChainRPCURL == "" {
		return nil, fmt.Errorf("chain rpc url is empty")
	}
	if log == nil {
		log = zap.NewNop()
	}
	eth, err := ethclient.DialContext(ctx, cfg.ChainRPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.ChainRPCURL, err)
	}
	id, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	if cfg.ChainID != 0 && id.Int64() != cfg.ChainID {
		eth.Close()
		return nil, fmt.Errorf("rpc serves chain %s, expected %d", id, cfg.ChainID)
	}
	log.Info("connected to chain", zap.String("chain_id", id.String()))
	return &Client{
		eth:     eth,
		chainID: id,
		timeout: time.Duration(cfg.ChainTimeoutSec) * time.Second,
		log:     log,
	}, nil
}

// NFT returns the achievement contract adapter signing with the minter key.
func (c *Client) NFT(address, minterKey string) (*AchievementNFT, error) {
	key, err := ParsePrivateKey(minterKey)
	if err != nil {
		return nil, err
	}
	return NewAchievementNFT(address, c.eth, key, c.chainID, c.timeout, c.log)
}

// Points returns the points contract reader.
func (c *Client) Points(address string) (*PointsContract, error) {
	return NewPointsContract(address, c.eth)
}

func (c *Client) Close() {
	c.eth.Close()
}

// ParsePrivateKey decodes a hex secp256k1 key, with or without 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("minter private key is empty")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse minter private key: %w", err)
	}
	return key, nil
}

func parseAddress(address string) (common.Address, error) {
	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("invalid contract address %q", address)
	}
	return common.HexToAddress(address), nil
}
