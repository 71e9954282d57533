package aave

import (
	"bytes"
	"context"
	"math/big"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// Caller is the subset of the chain client the label resolver needs.
type Caller interface {
	CodeAt(ctx context.Context, account common.Address) ([]byte, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

// LabelResolver memoizes best-effort token labels. Resolution degrades
// through symbol() -> name() -> checksummed address and never fails.
type LabelResolver struct {
	caller Caller

	mu    sync.RWMutex
	cache map[common.Address]string
}

func NewLabelResolver(caller Caller) *LabelResolver {
	return &LabelResolver{
		caller: caller,
		cache:  make(map[common.Address]string),
	}
}

// Resolve returns a human label for the asset. Definitive answers (a decoded
// symbol/name, or an address with no deployed code) are cached write-once for
// the process lifetime; a round where every probe failed or decoded empty is
// not cached, so the address is retried on its next encounter.
func (r *LabelResolver) Resolve(ctx context.Context, asset common.Address) string {
	r.mu.RLock()
	label, ok := r.cache[asset]
	r.mu.RUnlock()
	if ok {
		return label
	}

	label, definitive := r.probe(ctx, asset)
	if definitive {
		r.mu.Lock()
		if prior, ok := r.cache[asset]; ok {
			label = prior
		} else {
			r.cache[asset] = label
		}
		r.mu.Unlock()
	}
	return label
}

func (r *LabelResolver) probe(ctx context.Context, asset common.Address) (string, bool) {
	code, err := r.caller.CodeAt(ctx, asset)
	if err != nil {
		return asset.Hex(), false
	}
	if len(code) == 0 {
		// Not a token contract: a placeholder or native asset marker.
		return asset.Hex(), true
	}

	for _, selector := range [][]byte{selectorSymbol, selectorName} {
		out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &asset, Data: selector})
		if err != nil {
			continue
		}
		if label := decodeStringReturn(out); label != "" {
			return label, true
		}
	}
	return asset.Hex(), false
}

// decodeStringReturn decodes eth_call return data as an ABI dynamic string
// (offset word, length word, UTF-8 payload) and falls back to a right-padded
// bytes32. Returns "" when neither layout yields printable text.
func decodeStringReturn(ret []byte) string {
	if len(ret) == 0 {
		return ""
	}

	if len(ret) >= 3*wordSize {
		offset := new(big.Int).SetBytes(ret[:wordSize])
		if offset.IsUint64() && offset.Uint64() <= uint64(len(ret))-wordSize {
			off := offset.Uint64()
			length := new(big.Int).SetBytes(ret[off : off+wordSize])
			if length.IsUint64() && length.Uint64() <= uint64(len(ret))-off-wordSize {
				start := off + wordSize
				if label := cleanLabel(ret[start : start+length.Uint64()]); label != "" {
					return label
				}
			}
		}
	}

	return cleanLabel(bytes.TrimRight(ret, "\x00"))
}

func cleanLabel(raw []byte) string {
	label := strings.TrimSpace(strings.Trim(string(raw), "\x00"))
	if label == "" || !utf8.ValidString(label) {
		return ""
	}
	return label
}
