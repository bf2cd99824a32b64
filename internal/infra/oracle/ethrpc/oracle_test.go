package ethrpc

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"gatepass/internal/domain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

const contractAddr = "0x00000000000000000000000000000000000000c0"

type fakeCaller struct {
	owners map[string]common.Address
	err    error
	last   ethereum.CallMsg
}

func (f *fakeCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.last = call
	if f.err != nil {
		return nil, f.err
	}
	args, err := ownerOfABI.Methods["ownerOf"].Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}
	id := args[0].(*big.Int)
	owner, ok := f.owners[id.String()]
	if !ok {
		return nil, errors.New("execution reverted: ERC721: invalid token ID")
	}
	return ownerOfABI.Methods["ownerOf"].Outputs.Pack(owner)
}

func TestOwnerOf(t *testing.T) {
	owner := common.HexToAddress("0x2C7536E3605D9C16a7a3D7b1898e529396a65c23")
	caller := &fakeCaller{owners: map[string]common.Address{"7": owner}}
	oracle, err := New(caller, contractAddr)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}

	got, err := oracle.OwnerOf(context.Background(), domain.NewTicketID("7"))
	if err != nil {
		t.Fatalf("owner of: %v", err)
	}
	if got != "0x2c7536e3605d9c16a7a3d7b1898e529396a65c23" {
		t.Fatalf("unexpected owner %s", got)
	}
	if caller.last.To == nil || *caller.last.To != common.HexToAddress(contractAddr) {
		t.Fatalf("call sent to wrong contract: %v", caller.last.To)
	}
}

func TestOwnerOfErrors(t *testing.T) {
	tests := []struct {
		name   string
		caller *fakeCaller
		id     domain.TicketID
		want   error
	}{
		{name: "unminted", caller: &fakeCaller{}, id: domain.NewTicketID("8"), want: domain.ErrTicketNotFound},
		{name: "not a token id", caller: &fakeCaller{}, id: domain.NewTicketID("vip-1"), want: domain.ErrTicketNotFound},
		{name: "zero owner", caller: &fakeCaller{owners: map[string]common.Address{"9": {}}}, id: domain.NewTicketID("9"), want: domain.ErrTicketNotFound},
		{name: "transport", caller: &fakeCaller{err: errors.New("dial tcp: connection refused")}, id: domain.NewTicketID("7"), want: domain.ErrOracleUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle, err := New(tt.caller, contractAddr)
			if err != nil {
				t.Fatalf("new oracle: %v", err)
			}
			if _, err := oracle.OwnerOf(context.Background(), tt.id); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewRejectsBadContract(t *testing.T) {
	if _, err := New(&fakeCaller{}, "not-an-address"); err == nil {
		t.Fatal("expected invalid contract error")
	}
}
