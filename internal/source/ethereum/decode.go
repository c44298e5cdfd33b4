package ethereum

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dtroode/kurisync/internal/model"
)

func single(method string, out []any) (any, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %s returned %d values", model.ErrMalformedResult, method, len(out))
	}
	return out[0], nil
}

func decodeBool(method string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s returned %T", model.ErrInvalidResultType, method, v)
	}
	return b, nil
}

// decodeInt coerces every numeric representation a view call may yield.
func decodeInt(method string, v any) (int64, error) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return 0, fmt.Errorf("%w: %s returned nil", model.ErrUnexpectedResultType, method)
		}
		return bigToInt64(method, n)
	case big.Int:
		return bigToInt64(method, &n)
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return uintToInt64(method, uint64(n))
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return uintToInt64(method, n)
	case float32:
		return floatToInt64(method, float64(n))
	case float64:
		return floatToInt64(method, n)
	case json.Number:
		return stringToInt64(method, n.String())
	case string:
		return stringToInt64(method, n)
	default:
		return 0, fmt.Errorf("%w: %s returned %T", model.ErrUnexpectedResultType, method, v)
	}
}

func bigToInt64(method string, n *big.Int) (int64, error) {
	if !n.IsInt64() {
		return 0, fmt.Errorf("%w: %s returned %s which overflows int64", model.ErrMalformedResult, method, n)
	}
	return n.Int64(), nil
}

func uintToInt64(method string, n uint64) (int64, error) {
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %s returned %d which overflows int64", model.ErrMalformedResult, method, n)
	}
	return int64(n), nil
}

func floatToInt64(method string, f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %s returned non-integral %v", model.ErrMalformedResult, method, f)
	}
	return int64(f), nil
}

func stringToInt64(method, s string) (int64, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	n, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s returned non-numeric string: %w", model.ErrMalformedResult, method, err)
	}
	return n, nil
}

func decodeAddresses(method string, v any) ([]string, error) {
	switch list := v.(type) {
	case []common.Address:
		out := make([]string, 0, len(list))
		for _, a := range list {
			out = append(out, model.NormalizeAddress(a.Hex()))
		}
		return out, nil
	case []string:
		out := make([]string, 0, len(list))
		for _, a := range list {
			addr, err := model.ParseAddress(a)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", model.ErrMalformedResult, method, err)
			}
			out = append(out, addr)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s returned %T", model.ErrUnexpectedResultType, method, v)
	}
}
