package audit

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// GenesisHash anchors the chain: the first entry of every log carries
// it as prev_hash.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// maxLineBytes caps one audit line when scanning. Comprehensive
// entries carry cost controls and env keys but stay far below this.
const maxLineBytes = 1 << 20

// Log persists audit entries as JSONL, one hash-chained line per
// entry: prev_hash on each line is the SHA-256 of the line before it,
// so edits, deletions, and insertions all surface in Verify.
type Log struct {
	path string
	file *os.File

	mu   sync.Mutex
	tail string // hash of the last written line, guarded by mu
}

// Open opens (or creates) an audit log file for appending. An existing
// file is scanned so new entries continue its chain instead of
// restarting at genesis.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	tail, err := chainTail(path)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: open file: %w", err)
	}

	return &Log{path: path, file: file, tail: tail}, nil
}

// chainTail returns the hash of the last line in the file, or the
// genesis hash when the file is missing or empty.
func chainTail(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return GenesisHash, nil
		}
		return "", fmt.Errorf("audit: read existing log: %w", err)
	}
	defer f.Close()

	tail := GenesisHash
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		tail = HashLine(scanner.Bytes())
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("audit: scan existing log: %w", err)
	}
	return tail, nil
}

// DefaultPath returns the default audit log location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "flowguard-audit.jsonl")
	}
	return filepath.Join(home, ".flowguard", "logs", "governance-audit.jsonl")
}

// Path returns the file the log writes to.
func (l *Log) Path() string {
	return l.path
}

// Record appends an Entry to the log. It stamps the entry with the
// chain tail and a timestamp (when the caller left it empty), writes
// one JSON line, and syncs before advancing the tail, so a crash can
// lose at most the entry being written.
func (l *Log) Record(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp == "" {
		entry.Timestamp = FormatTime(time.Now())
	}
	entry.PrevHash = l.tail

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}

	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: write entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("audit: sync: %w", err)
	}

	l.tail = HashLine(line)
	return nil
}

// RecordAll appends entries in order, stopping at the first failure.
func (l *Log) RecordAll(entries []Entry) error {
	for _, e := range entries {
		if err := l.Record(e); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying file. The log is unusable afterwards.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// HashLine digests one JSON line into the "sha256:<hex>" form the
// chain stores.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}
