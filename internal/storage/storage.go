package storage

import "github.com/Mak300079/MT-watchers/internal/model"

// AssetSink records newly discovered assets.
type AssetSink interface {
	AppendAssets(assets []model.Asset) error
}
