package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"balance_service/internal/config"
	"balance_service/internal/utils"
)

// BalanceRequestType selects which JSON-RPC call a request maps to.
type BalanceRequestType int

const (
	NativeBalanceRequest BalanceRequestType = iota
	TokenBalanceRequest
)

// BalanceRequestItem describes one balance query inside a batch.
type BalanceRequestItem struct {
	Type          BalanceRequestType
	WalletLabel   string
	WalletAddress string
	TokenSymbol   string
	TokenAddress  string
	Decimals      int32
}

// BalanceResultItem carries the outcome of one query. Error is per-item; a
// failed item never poisons the rest of the batch.
type BalanceResultItem struct {
	WalletLabel   string
	WalletAddress string
	TokenSymbol   string
	Amount        decimal.Decimal
	Error         error
}

// Minimal ERC-20 ABI covering balanceOf.
const erc20ABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}]`

var (
	parsedERC20ABI  abi.ABI
	parsedERC20Once sync.Once
	erc20MethodID   []byte
)

func initParsedERC20ABI() {
	parsedERC20Once.Do(func() {
		var err error
		parsedERC20ABI, err = abi.JSON(strings.NewReader(erc20ABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
		balanceOfMethod, ok := parsedERC20ABI.Methods["balanceOf"]
		if !ok {
			panic("balanceOf method not found in parsed ERC20 ABI")
		}
		erc20MethodID = balanceOfMethod.ID
	})
}

// EVMClient queries balances on an EVM-compatible chain using JSON-RPC batch
// requests, one batch per wallet sweep.
type EVMClient struct {
	ethClient      *ethclient.Client
	chain          config.ChainConfig
	rpcCallTimeout time.Duration
	limiter        *rate.Limiter
	logger         *zap.Logger
}

// NewEVMClient dials the configured RPC endpoint.
func NewEVMClient(chain config.ChainConfig, logger *zap.Logger) (*EVMClient, error) {
	initParsedERC20ABI()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(chain.RPCTimeoutMs)*time.Millisecond)
	defer cancel()

	client, err := ethclient.DialContext(ctx, chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC %s for chain %s: %w", chain.RPCURL, chain.Name, err)
	}

	return &EVMClient{
		ethClient:      client,
		chain:          chain,
		rpcCallTimeout: time.Duration(chain.RPCTimeoutMs) * time.Millisecond,
		limiter:        rate.NewLimiter(rate.Limit(chain.RateLimit), chain.BurstLimit),
		logger:         logger.Named("EVMClient").With(zap.String("chain", chain.Name)),
	}, nil
}

// Close releases the underlying RPC connection.
func (c *EVMClient) Close() {
	c.ethClient.Close()
}

// GetBalances resolves a batch of balance requests in a single
// BatchCallContext round trip.
func (c *EVMClient) GetBalances(ctx context.Context, requests []BalanceRequestItem) ([]BalanceResultItem, error) {
	if len(requests) == 0 {
		return []BalanceResultItem{}, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed for chain %s: %w", c.chain.Name, err)
	}

	batchElems := make([]rpc.BatchElem, len(requests))
	results := make([]BalanceResultItem, len(requests))

	for i, reqItem := range requests {
		results[i] = BalanceResultItem{
			WalletLabel:   reqItem.WalletLabel,
			WalletAddress: reqItem.WalletAddress,
			TokenSymbol:   reqItem.TokenSymbol,
		}

		switch reqItem.Type {
		case NativeBalanceRequest:
			batchElems[i] = rpc.BatchElem{
				Method: "eth_getBalance",
				Args:   []interface{}{common.HexToAddress(reqItem.WalletAddress), "latest"},
				Result: new(*hexutil.Big),
			}
		case TokenBalanceRequest:
			paddedWalletAddress := common.LeftPadBytes(common.HexToAddress(reqItem.WalletAddress).Bytes(), 32)
			callData := append(append([]byte{}, erc20MethodID...), paddedWalletAddress...)

			callArgs := map[string]interface{}{
				"to":   common.HexToAddress(reqItem.TokenAddress),
				"data": hexutil.Bytes(callData),
			}
			batchElems[i] = rpc.BatchElem{
				Method: "eth_call",
				Args:   []interface{}{callArgs, "latest"},
				Result: new(hexutil.Bytes),
			}
		default:
			results[i].Error = fmt.Errorf("unknown balance request type %v for %s", reqItem.Type, reqItem.TokenSymbol)
		}
	}

	rpcCallCtx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()

	if err := c.ethClient.Client().BatchCallContext(rpcCallCtx, batchElems); err != nil {
		return results, fmt.Errorf("RPC batch call failed for chain %s: %w", c.chain.Name, err)
	}

	for i, elem := range batchElems {
		if results[i].Error != nil {
			continue
		}
		if elem.Error != nil {
			results[i].Error = fmt.Errorf("failed to fetch %s for wallet %s: %w",
				requests[i].TokenSymbol, requests[i].WalletAddress, elem.Error)
			continue
		}

		var raw *big.Int
		switch requests[i].Type {
		case NativeBalanceRequest:
			if result, ok := elem.Result.(**hexutil.Big); ok && result != nil && *result != nil {
				raw = (*big.Int)(*result)
			} else {
				results[i].Error = fmt.Errorf("failed to decode native balance for %s: unexpected type or nil result", requests[i].TokenSymbol)
			}
		case TokenBalanceRequest:
			result, ok := elem.Result.(*hexutil.Bytes)
			if !ok || result == nil {
				results[i].Error = fmt.Errorf("failed to decode token balance for %s: unexpected type or nil result", requests[i].TokenSymbol)
				break
			}
			if len(*result) == 0 {
				raw = big.NewInt(0)
				break
			}
			unpacked, err := parsedERC20ABI.Unpack("balanceOf", *result)
			if err != nil {
				results[i].Error = fmt.Errorf("failed to unpack balanceOf result for %s: %w", requests[i].TokenSymbol, err)
				break
			}
			if len(unpacked) == 0 {
				results[i].Error = fmt.Errorf("balanceOf unpack returned no data for %s", requests[i].TokenSymbol)
				break
			}
			balanceVal, ok := unpacked[0].(*big.Int)
			if !ok {
				results[i].Error = fmt.Errorf("failed to assert unpacked balanceOf result to *big.Int for %s, got %T",
					requests[i].TokenSymbol, unpacked[0])
				break
			}
			raw = balanceVal
		}

		if results[i].Error == nil {
			if raw == nil {
				raw = big.NewInt(0)
			}
			results[i].Amount = utils.BaseUnitsToDecimal(raw, requests[i].Decimals)
		}
	}
	return results, nil
}
