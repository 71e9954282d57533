package aave

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Mak300079/MT-watchers/internal/model"
)

const wordSize = 32

// DecodeError reports a malformed or unexpected log shape. The watcher skips
// the single offending log and continues the window.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "decode cap-change log: " + e.Reason
}

// DecodeCapChange decodes a raw configurator log into a CapChangeEvent.
//
// Kind, block, tx hash, asset address, and both caps are filled. The asset
// label and wall-clock timestamp require extra reads and are left to the
// caller. An unregistered topic0 yields KindUnknown rather than an error, so
// an unexpected event the node filter let through never crashes the loop.
func DecodeCapChange(lg types.Log) (model.CapChangeEvent, error) {
	if len(lg.Topics) == 0 {
		return model.CapChangeEvent{}, &DecodeError{Reason: "log has no topics"}
	}
	if len(lg.Topics) < 2 {
		return model.CapChangeEvent{}, &DecodeError{Reason: "missing indexed asset topic"}
	}

	assetTopic := lg.Topics[1]
	for _, b := range assetTopic[:wordSize-common.AddressLength] {
		if b != 0 {
			return model.CapChangeEvent{}, &DecodeError{
				Reason: fmt.Sprintf("indexed topic %s is not an address", assetTopic.Hex()),
			}
		}
	}
	asset := common.BytesToAddress(assetTopic[wordSize-common.AddressLength:])

	if len(lg.Data) < 2*wordSize {
		return model.CapChangeEvent{}, &DecodeError{
			Reason: fmt.Sprintf("data region is %d bytes, need %d", len(lg.Data), 2*wordSize),
		}
	}
	oldCap := new(big.Int).SetBytes(lg.Data[:wordSize])
	newCap := new(big.Int).SetBytes(lg.Data[wordSize : 2*wordSize])

	return model.CapChangeEvent{
		Kind:         kindForTopic(lg.Topics[0]),
		BlockNumber:  lg.BlockNumber,
		TxHash:       lg.TxHash.Hex(),
		AssetAddress: asset.Hex(),
		OldCap:       oldCap,
		NewCap:       newCap,
	}, nil
}
