package contract

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/thep2p/go-eth-devkit/internal/client"
	"github.com/thep2p/go-eth-devkit/internal/model"
)

// CoerceArgs converts textual arguments, as typed on a command line, into the
// Go values the ABI encoder expects for the inputs of m. Integers accept an
// optional minus sign followed by decimal digits or 0x-prefixed hex; bytes are
// 0x-prefixed hex.
func CoerceArgs(m abi.Method, args []string) ([]interface{}, error) {
	if len(args) != len(m.Inputs) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", model.ErrArgumentMismatch, m.Sig, len(m.Inputs), len(args))
	}
	out := make([]interface{}, len(args))
	for i, in := range m.Inputs {
		v, err := coerce(in.Type, args[i])
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d (%s %s): %w", model.ErrArgumentMismatch, i, in.Type.String(), in.Name, err)
		}
		out[i] = v
	}
	return out, nil
}

func coerce(t abi.Type, s string) (interface{}, error) {
	s = strings.TrimSpace(s)
	switch t.T {
	case abi.UintTy, abi.IntTy:
		return coerceInt(t, s)
	case abi.BoolTy:
		return strconv.ParseBool(s)
	case abi.StringTy:
		return s, nil
	case abi.AddressTy:
		return client.ParseAddress(s)
	case abi.BytesTy:
		return hexutil.Decode(s)
	case abi.FixedBytesTy:
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, err
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("want %d bytes, got %d", t.Size, len(b))
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil
	default:
		return nil, fmt.Errorf("unsupported type %s", t.String())
	}
}

// parseInteger reads an optionally signed decimal or 0x-prefixed hex integer.
func parseInteger(s string) (*big.Int, error) {
	digits, neg := s, false
	if strings.HasPrefix(digits, "-") {
		digits, neg = digits[1:], true
	}
	base := 10
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		digits, base = digits[2:], 16
	}
	n, ok := new(big.Int).SetString(digits, base)
	if !ok || strings.HasPrefix(digits, "+") || strings.HasPrefix(digits, "-") {
		return nil, fmt.Errorf("not an integer: %q", s)
	}
	if neg {
		n.Neg(n)
	}
	return n, nil
}

func coerceInt(t abi.Type, s string) (interface{}, error) {
	n, err := parseInteger(s)
	if err != nil {
		return nil, err
	}
	signed := t.T == abi.IntTy
	if !signed && n.Sign() < 0 {
		return nil, fmt.Errorf("negative value for unsigned type")
	}
	bits := n.BitLen()
	if signed && n.Sign() < 0 {
		// -2^(k-1) fits in k bits
		bits = new(big.Int).Add(n, big.NewInt(1)).BitLen()
	}
	if signed {
		bits++
	}
	if bits > t.Size {
		return nil, fmt.Errorf("%s overflows %s", s, t.String())
	}

	// the encoder wants native integers for the sizes Go has, *big.Int otherwise
	switch t.GetType().Kind() {
	case reflect.Uint8:
		return uint8(n.Uint64()), nil
	case reflect.Uint16:
		return uint16(n.Uint64()), nil
	case reflect.Uint32:
		return uint32(n.Uint64()), nil
	case reflect.Uint64:
		return n.Uint64(), nil
	case reflect.Int8:
		return int8(n.Int64()), nil
	case reflect.Int16:
		return int16(n.Int64()), nil
	case reflect.Int32:
		return int32(n.Int64()), nil
	case reflect.Int64:
		return n.Int64(), nil
	default:
		return n, nil
	}
}

// FormatValue renders a decoded ABI value for display. Byte strings are hex
// encoded; everything else uses its default format.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case []byte:
		return hexutil.Encode(x)
	case fmt.Stringer:
		return x.String()
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		b := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(b), rv)
		return hexutil.Encode(b)
	}
	return fmt.Sprint(v)
}
