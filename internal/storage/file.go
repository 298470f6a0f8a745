package storage

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	blobExt   = ".json"
	streamExt = ".jsonl"
)

// FileMedium stores blobs as JSON files and streams as JSONL files under a
// root directory. Blob writes go through a temp file and rename so a crashed
// write never leaves a half-written collection behind.
type FileMedium struct {
	root string
}

// NewFileMedium creates the root directory if needed and returns a medium
// over it.
func NewFileMedium(root string) (*FileMedium, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", root, err)
	}
	return &FileMedium{root: root}, nil
}

func (m *FileMedium) blobPath(key string) string {
	return filepath.Join(m.root, filepath.FromSlash(key)+blobExt)
}

func (m *FileMedium) streamPath(name string) string {
	return filepath.Join(m.root, filepath.FromSlash(name)+streamExt)
}

func (m *FileMedium) ReadBlob(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(m.blobPath(key))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", key, err)
	}
	return data, nil
}

func (m *FileMedium) WriteBlob(ctx context.Context, key string, data []byte) error {
	path := m.blobPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for blob %s: %w", key, err)
	}
	// A unique temp name per writer, so concurrent writes of the same key
	// cannot remove or rename each other's in-flight file.
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for blob %s: %w", key, err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing blob %s: %w", key, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing blob %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing blob %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming blob %s: %w", key, err)
	}
	return nil
}

func (m *FileMedium) ListBlobs(ctx context.Context, prefix string) ([]string, error) {
	dir := m.root
	rest := prefix
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		dir = filepath.Join(m.root, filepath.FromSlash(prefix[:i]))
		rest = prefix[i+1:]
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing blobs under %s: %w", prefix, err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, blobExt) {
			continue
		}
		name = strings.TrimSuffix(name, blobExt)
		if !strings.HasPrefix(name, rest) {
			continue
		}
		key := name
		if i := strings.LastIndex(prefix, "/"); i >= 0 {
			key = prefix[:i] + "/" + name
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *FileMedium) AppendLine(ctx context.Context, stream string, line []byte) error {
	path := m.streamPath(stream)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening stream %s: %w", stream, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending to stream %s: %w", stream, err)
	}
	return nil
}

func (m *FileMedium) ReadLines(ctx context.Context, stream string) ([][]byte, error) {
	f, err := os.Open(m.streamPath(stream))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening stream %s: %w", stream, err)
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		line := make([]byte, len(raw))
		copy(line, raw)
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return lines, fmt.Errorf("scanning stream %s: %w", stream, err)
	}
	return lines, nil
}

func (m *FileMedium) ClearStream(ctx context.Context, stream string) error {
	err := os.Remove(m.streamPath(stream))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing stream %s: %w", stream, err)
	}
	return nil
}

func (m *FileMedium) Ping(ctx context.Context) error {
	info, err := os.Stat(m.root)
	if err != nil {
		return fmt.Errorf("stat data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data path %s is not a directory", m.root)
	}
	return nil
}

func (m *FileMedium) Close() error {
	return nil
}
