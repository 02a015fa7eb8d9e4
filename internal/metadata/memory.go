package metadata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"campusid/pkg/platform/sentinel"
)

// Memory is a content-addressed store for tests and local development. Its
// hashes are sha256-derived and stable for byte-identical payloads, which is
// stricter than real pinning services guarantee.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) PutJSON(ctx context.Context, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return m.put(data), nil
}

func (m *Memory) PutBytes(ctx context.Context, data []byte, name string) (string, error) {
	return m.put(data), nil
}

func (m *Memory) GetJSON(ctx context.Context, contentHash string, out any) error {
	m.mu.RLock()
	data, ok := m.blobs[contentHash]
	m.mu.RUnlock()
	if !ok {
		return sentinel.ErrNotFound
	}
	return json.Unmarshal(data, out)
}

func (m *Memory) put(data []byte) string {
	sum := sha256.Sum256(data)
	hash := "mem" + hex.EncodeToString(sum[:])
	m.mu.Lock()
	m.blobs[hash] = append([]byte(nil), data...)
	m.mu.Unlock()
	return hash
}
