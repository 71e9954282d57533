package aave

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Mak300079/MT-watchers/internal/model"
)

// DefaultConfigurator is the Aave v3 PoolConfigurator proxy on Ethereum
// mainnet, the single contract the cap watcher listens to.
var DefaultConfigurator = common.HexToAddress("0x64b761D848206f447Fe2dd461b0c635Ec39EbB27")

// Event signature hashes (topic0) for the monitored configurator events.
var (
	TopicSupplyCapChanged = crypto.Keccak256Hash([]byte("SupplyCapChanged(address,uint256,uint256)"))
	TopicBorrowCapChanged = crypto.Keccak256Hash([]byte("BorrowCapChanged(address,uint256,uint256)"))
)

// 4-byte method selectors used by the label resolver's raw eth_calls.
var (
	selectorSymbol = crypto.Keccak256([]byte("symbol()"))[:4]
	selectorName   = crypto.Keccak256([]byte("name()"))[:4]
)

// CapTopics returns the topic0 OR-set for the node-side log filter.
func CapTopics() []common.Hash {
	return []common.Hash{TopicSupplyCapChanged, TopicBorrowCapChanged}
}

func kindForTopic(topic common.Hash) model.CapEventKind {
	switch topic {
	case TopicSupplyCapChanged:
		return model.KindSupplyCapChanged
	case TopicBorrowCapChanged:
		return model.KindBorrowCapChanged
	default:
		return model.KindUnknown
	}
}
