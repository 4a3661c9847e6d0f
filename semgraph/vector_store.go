package semgraph

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// vectorStore persists embeddings as little-endian float32 files named by
// cache key, so a restarted process skips recomputing known lines. A store
// with an empty dir does nothing.
type vectorStore struct {
	dir string
}

func newVectorStore(dir string) (*vectorStore, error) {
	if dir == "" {
		return &vectorStore{}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &vectorStore{dir: dir}, nil
}

func (s *vectorStore) path(key string) string {
	return filepath.Join(s.dir, key+".bin")
}

func (s *vectorStore) load(key string) ([]float32, bool, error) {
	if s.dir == "" {
		return nil, false, nil
	}
	path := s.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(data) < 4 {
		return nil, false, fmt.Errorf("cache file broken: %s", path)
	}
	n := int(binary.LittleEndian.Uint32(data[:4]))
	if len(data) != 4+n*4 {
		return nil, false, fmt.Errorf("cache file truncated: %s", path)
	}
	vec := make([]float32, n)
	if err := binary.Read(bytes.NewReader(data[4:]), binary.LittleEndian, vec); err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func (s *vectorStore) save(key string, vec []float32) error {
	if s.dir == "" {
		return nil
	}
	buf := bytes.NewBuffer(make([]byte, 0, 4+len(vec)*4))
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(vec)))
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return err
	}
	// Write then rename so concurrent readers never see a partial file.
	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(key))
}
