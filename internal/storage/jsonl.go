package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Mak300079/MT-watchers/internal/model"
)

// JsonlStorage keeps an append-only JSONL log of discovered assets.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

type discoveryRecord struct {
	DiscoveredAt string `json:"discovered_at"`
	Address      string `json:"address"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	ChainID      uint64 `json:"chain_id"`
}

// AppendAssets appends one JSON line per asset.
func (s *JsonlStorage) AppendAssets(assets []model.Asset) error {
	if len(assets) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	writer := bufio.NewWriter(file)
	for _, asset := range assets {
		line, err := json.Marshal(discoveryRecord{
			DiscoveredAt: now,
			Address:      asset.Address,
			Name:         asset.Name,
			Symbol:       asset.Symbol,
			ChainID:      asset.ChainID,
		})
		if err != nil {
			return fmt.Errorf("marshal discovery record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write discovery record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
