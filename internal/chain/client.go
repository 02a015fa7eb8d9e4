package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"campusid/internal/platform/config"
	"campusid/pkg/platform/sentinel"
)

// Client talks to the identity registry contract over JSON-RPC. One client
// and one underlying connection are shared for the life of the process.
type Client struct {
	eth            *ethclient.Client
	bound          *bind.BoundContract
	registryABI    abi.ABI
	contract       common.Address
	key            *ecdsa.PrivateKey
	chainID        *big.Int
	confirmTimeout time.Duration
	pollInterval   time.Duration
	logger         *slog.Logger
}

// NewClient dials the RPC node and binds the registry contract. Returns nil
// when no RPC URL is configured so local runs can skip the chain leg.
func NewClient(cfg config.ChainConfig, logger *slog.Logger) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, nil
	}

	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(RegistryABI))
	if err != nil {
		return nil, fmt.Errorf("parse registry ABI: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signer key: %w", err)
	}

	contract := common.HexToAddress(cfg.ContractAddress)
	return &Client{
		eth:            eth,
		bound:          bind.NewBoundContract(contract, parsed, eth, eth, eth),
		registryABI:    parsed,
		contract:       contract,
		key:            key,
		chainID:        big.NewInt(cfg.ChainID),
		confirmTimeout: cfg.ConfirmTimeout,
		pollInterval:   cfg.PollInterval,
		logger:         logger.With("component", "chain_registry"),
	}, nil
}

func (c *Client) Exists(ctx context.Context, did string) (bool, error) {
	var out []any
	err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, "exists", did)
	if err != nil {
		return false, fmt.Errorf("%w: exists call: %v", ErrUnavailable, err)
	}
	exists, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("%w: unexpected exists output", ErrUnavailable)
	}
	return exists, nil
}

func (c *Client) GetEntry(ctx context.Context, did string) (*Entry, error) {
	var out []any
	err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, "getIdentity", did)
	if err != nil {
		return nil, fmt.Errorf("%w: getIdentity call: %v", ErrUnavailable, err)
	}
	if len(out) != 4 {
		return nil, fmt.Errorf("%w: unexpected getIdentity output", ErrUnavailable)
	}
	owner := out[1].(common.Address)
	if owner == (common.Address{}) {
		// The contract returns zeroed fields for unknown DIDs.
		return nil, sentinel.ErrNotFound
	}
	createdAt := out[3].(*big.Int)
	return &Entry{
		DID:       did,
		IPFSHash:  out[0].(string),
		Owner:     owner.Hex(),
		Status:    StatusCode(out[2].(uint8)),
		CreatedAt: time.Unix(createdAt.Int64(), 0).UTC(),
	}, nil
}

func (c *Client) Register(ctx context.Context, did, metadataHash, ownerWallet string) (*TxResult, error) {
	return c.transact(ctx, "register", "registerIdentity", did, metadataHash, common.HexToAddress(ownerWallet))
}

func (c *Client) SetStatus(ctx context.Context, did string, code StatusCode) (*TxResult, error) {
	return c.transact(ctx, "setStatus", "setStatus", did, uint8(code))
}

// transact submits a signed transaction and blocks until one confirmation
// or the confirmation timeout. A timeout does not mean the transaction did
// not land; the coordinator must verify before re-issuing.
func (c *Client) transact(ctx context.Context, op, method string, args ...any) (*TxResult, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, &WriteError{Op: op, Reason: "build transactor", Err: err}
	}
	auth.Context = ctx

	tx, err := c.bound.Transact(auth, method, args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, &WriteError{Op: op, Reason: "submission timed out", Err: err}
		}
		return nil, &WriteError{Op: op, Reason: "submission rejected", Err: err}
	}

	c.logger.InfoContext(ctx, "chain transaction submitted",
		"op", op,
		"tx_hash", tx.Hash().Hex(),
	)

	receipt, err := c.waitConfirmed(ctx, tx.Hash())
	if err != nil {
		return nil, &WriteError{Op: op, Reason: "confirmation wait failed", Err: err}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &WriteError{Op: op, Reason: "transaction reverted"}
	}
	return &TxResult{TxHash: tx.Hash().Hex(), BlockNumber: receipt.BlockNumber.Uint64()}, nil
}

// waitConfirmed polls for the receipt until the confirmation timeout. One
// mined block counts as confirmed; finality is out of scope.
func (c *Client) waitConfirmed(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("fetch receipt: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("confirmation timeout for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}
