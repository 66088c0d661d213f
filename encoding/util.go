package encoding

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/smartraiden/mcore/primitives"
)

func parseUint64(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func parseUint256(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func parseAddress(s string) primitives.Address {
	return common.HexToAddress(s)
}

func parseHash(s string) primitives.Keccak256 {
	return common.HexToHash(s)
}

func bytesToHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func parseSignature(s string) (primitives.Signature, error) {
	var sig primitives.Signature
	if len(s) >= 2 && s[0:2] == "0x" {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return sig, err
	}
	if len(raw) != 65 {
		return sig, fmt.Errorf("encoding: signature must be 65 bytes, got %d", len(raw))
	}
	copy(sig[:], raw)
	return sig, nil
}
