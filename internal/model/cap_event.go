package model

import (
	"math/big"
	"time"
)

// CapEventKind identifies which configurator event a log decoded into.
type CapEventKind string

const (
	KindSupplyCapChanged CapEventKind = "SupplyCapChanged"
	KindBorrowCapChanged CapEventKind = "BorrowCapChanged"

	// KindUnknown marks a log whose topic0 matched none of the registered
	// signatures. The node-side filter should make this unreachable.
	KindUnknown CapEventKind = "UnknownEvent"
)

// CapChangeEvent is a decoded supply/borrow cap update. Created once per raw
// log, handed to the notifiers exactly once, then discarded.
type CapChangeEvent struct {
	Kind         CapEventKind
	BlockNumber  uint64
	TxHash       string
	AssetAddress string
	AssetLabel   string
	OldCap       *big.Int
	NewCap       *big.Int
	Timestamp    time.Time
}
