// Package ethereum reads ledger contract state over JSON-RPC.
package ethereum

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/dtroode/kurisync/internal/model"
	"github.com/dtroode/kurisync/internal/remote"
)

//go:embed rosca.abi.json
var roscaABI string

const (
	methodSlots               = "slots"
	methodCurrentRound        = "currentRound"
	methodParticipants        = "getParticipants"
	methodHasPaidRound        = "hasPaidRound"
	methodHasBidRound         = "hasBidRound"
	methodParticipantWonRound = "participantWonRound"
	methodHasWon              = "hasWon"
	methodUserContributions   = "userContributions"
)

// JSON-RPC error codes providers use for throttling.
const (
	codeLimitExceeded = -32005
	codeRateLimited   = -32016
)

var errEmptyResult = errors.New("empty return data")

// contractCaller is the subset of ethclient.Client the ledger needs.
type contractCaller interface {
	CallContract(ctx context.Context, msg geth.CallMsg, blockNumber *big.Int) ([]byte, error)
}

var _ model.LedgerSource = (*Ledger)(nil)

// Ledger reads ledger contract views, every call going through the retrying caller.
type Ledger struct {
	client  contractCaller
	abi     abi.ABI
	caller  *remote.Caller
	timeout time.Duration
}

// Dial connects to a JSON-RPC endpoint.
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc endpoint: %w", err)
	}
	return client, nil
}

// NewLedger creates a Ledger. timeout bounds every single attempt, 0 means no bound.
func NewLedger(client contractCaller, caller *remote.Caller, timeout time.Duration) (*Ledger, error) {
	parsed, err := abi.JSON(strings.NewReader(roscaABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ledger abi: %w", err)
	}

	return &Ledger{
		client:  client,
		abi:     parsed,
		caller:  caller,
		timeout: timeout,
	}, nil
}

func (l *Ledger) call(ctx context.Context, contract, method string, args ...any) (any, error) {
	if !common.IsHexAddress(contract) {
		return nil, fmt.Errorf("%w: contract %q", model.ErrInvalidAddress, contract)
	}
	to := common.HexToAddress(contract)

	input, err := l.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	raw, err := remote.Call(ctx, l.caller, contract, method, func(ctx context.Context) ([]byte, error) {
		if l.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, l.timeout)
			defer cancel()
		}

		out, err := l.client.CallContract(ctx, geth.CallMsg{To: &to, Data: input}, nil)
		if err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return nil, errEmptyResult
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	values, err := l.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to unpack %s: %w", model.ErrMalformedResult, method, err)
	}

	return single(method, values)
}

func (l *Ledger) callInt(ctx context.Context, contract, method string, args ...any) (int64, error) {
	v, err := l.call(ctx, contract, method, args...)
	if err != nil {
		return 0, err
	}
	return decodeInt(method, v)
}

func (l *Ledger) callBool(ctx context.Context, contract, method string, args ...any) (bool, error) {
	v, err := l.call(ctx, contract, method, args...)
	if err != nil {
		return false, err
	}
	return decodeBool(method, v)
}

func participant(user string) (common.Address, error) {
	if !common.IsHexAddress(user) {
		return common.Address{}, fmt.Errorf("%w: participant %q", model.ErrInvalidAddress, user)
	}
	return common.HexToAddress(user), nil
}

func (l *Ledger) SlotCount(ctx context.Context, contract string) (int, error) {
	n, err := l.callInt(ctx, contract, methodSlots)
	return int(n), err
}

func (l *Ledger) CurrentRound(ctx context.Context, contract string) (int, error) {
	n, err := l.callInt(ctx, contract, methodCurrentRound)
	return int(n), err
}

func (l *Ledger) Participants(ctx context.Context, contract string) ([]string, error) {
	v, err := l.call(ctx, contract, methodParticipants)
	if err != nil {
		return nil, err
	}
	return decodeAddresses(methodParticipants, v)
}

func (l *Ledger) HasPaidRound(ctx context.Context, contract, user string, round int) (bool, error) {
	addr, err := participant(user)
	if err != nil {
		return false, err
	}
	return l.callBool(ctx, contract, methodHasPaidRound, addr, big.NewInt(int64(round)))
}

func (l *Ledger) HasBidRound(ctx context.Context, contract, user string, round int) (bool, error) {
	addr, err := participant(user)
	if err != nil {
		return false, err
	}
	return l.callBool(ctx, contract, methodHasBidRound, addr, big.NewInt(int64(round)))
}

func (l *Ledger) WonRound(ctx context.Context, contract, user string) (int, error) {
	addr, err := participant(user)
	if err != nil {
		return 0, err
	}
	n, err := l.callInt(ctx, contract, methodParticipantWonRound, addr)
	return int(n), err
}

func (l *Ledger) HasWon(ctx context.Context, contract, user string) (bool, error) {
	addr, err := participant(user)
	if err != nil {
		return false, err
	}
	return l.callBool(ctx, contract, methodHasWon, addr)
}

func (l *Ledger) TotalContributions(ctx context.Context, contract, user string) (int64, error) {
	addr, err := participant(user)
	if err != nil {
		return 0, err
	}
	return l.callInt(ctx, contract, methodUserContributions, addr)
}

// Classify maps JSON-RPC errors to remote failure classes. Throttling codes
// and HTTP 429 are rate limits. A revert without a reason and an empty
// return are rejections. Everything else is returned to the caller as is.
func Classify(err error) remote.Kind {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeLimitExceeded, codeRateLimited:
			return remote.KindRateLimited
		}
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return remote.KindRateLimited
	}

	if errors.Is(err, errEmptyResult) || isBareRevert(err) {
		return remote.KindRejected
	}

	return remote.KindOther
}

func isBareRevert(err error) bool {
	msg := err.Error()
	if !strings.Contains(msg, "execution reverted") {
		return false
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, ok := dataErr.ErrorData().(string); ok && data != "" && data != "0x" {
			return false
		}
	}

	return !strings.Contains(msg, "execution reverted:")
}
