// Package ethrpc reads ticket ownership from an ERC-721 contract over
// Ethereum JSON-RPC.
package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"gatepass/internal/domain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const erc721OwnerOfABI = `[{"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"ownerOf","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}]`

var ownerOfABI = mustParseABI(erc721OwnerOfABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Oracle performs one eth_call of ownerOf(uint256) per lookup against the
// latest block.
type Oracle struct {
	caller   ethereum.ContractCaller
	contract common.Address
	close    func()
}

func New(caller ethereum.ContractCaller, contract string) (*Oracle, error) {
	if caller == nil {
		return nil, errors.New("contract caller is required")
	}
	if !domain.IsAddress(contract) {
		return nil, fmt.Errorf("invalid ticket contract address %q", contract)
	}
	return &Oracle{caller: caller, contract: common.HexToAddress(contract), close: func() {}}, nil
}

// Dial connects to rpcURL. When chainID is non-zero the endpoint must
// report the same chain.
func Dial(ctx context.Context, rpcURL, contract string, chainID int64) (*Oracle, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc: %w", err)
	}
	if chainID != 0 {
		got, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("read chain id: %w", err)
		}
		if got.Cmp(big.NewInt(chainID)) != 0 {
			client.Close()
			return nil, fmt.Errorf("ledger rpc serves chain %s, expected %d", got, chainID)
		}
	}
	o, err := New(client, contract)
	if err != nil {
		client.Close()
		return nil, err
	}
	o.close = client.Close
	return o, nil
}

func (o *Oracle) Close() {
	o.close()
}

func (o *Oracle) OwnerOf(ctx context.Context, ticketID domain.TicketID) (string, error) {
	tokenID, ok := ticketID.BigInt()
	if !ok {
		return "", fmt.Errorf("%w: %q is not a token id", domain.ErrTicketNotFound, ticketID.String())
	}
	data, err := ownerOfABI.Pack("ownerOf", tokenID)
	if err != nil {
		return "", fmt.Errorf("%w: pack ownerOf: %v", domain.ErrOracleUnavailable, err)
	}

	out, err := o.caller.CallContract(ctx, ethereum.CallMsg{To: &o.contract, Data: data}, nil)
	if err != nil {
		if isRevert(err) {
			return "", fmt.Errorf("%w: %w", domain.ErrTicketNotFound, err)
		}
		return "", fmt.Errorf("%w: %w", domain.ErrOracleUnavailable, err)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("%w: empty ownerOf response from %s", domain.ErrOracleUnavailable, o.contract.Hex())
	}

	values, err := ownerOfABI.Unpack("ownerOf", out)
	if err != nil || len(values) != 1 {
		return "", fmt.Errorf("%w: decode ownerOf: %v", domain.ErrOracleUnavailable, err)
	}
	owner, ok := values[0].(common.Address)
	if !ok {
		return "", fmt.Errorf("%w: unexpected ownerOf type %T", domain.ErrOracleUnavailable, values[0])
	}
	if owner == (common.Address{}) {
		return "", domain.ErrTicketNotFound
	}
	return domain.NormalizeAddress(owner.Hex()), nil
}

// ERC-721 ownerOf reverts for tokens that were never minted or were burned.
func isRevert(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

var _ domain.OwnershipOracle = (*Oracle)(nil)
