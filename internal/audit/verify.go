package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// VerifyResult reports whether a trail's hash chain is intact and, if
// not, where it first breaks.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// Verify walks a JSONL audit log and checks every link: each entry's
// prev_hash must equal the hash of the line before it, and the first
// entry must reference genesis. It reports the first broken link; an
// empty log is valid.
func Verify(path string) VerifyResult {
	f, err := os.Open(path)
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("open audit log: %v", err)}
	}
	defer f.Close()

	want := GenesisHash
	lines := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		lines++

		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return VerifyResult{
				Error:     fmt.Sprintf("entry is not valid JSON: %v", err),
				ErrorLine: lines,
			}
		}
		if entry.PrevHash != want {
			return VerifyResult{
				Error:     fmt.Sprintf("chain break: prev_hash %s does not match %s", entry.PrevHash, want),
				ErrorLine: lines,
			}
		}

		// Hash before the scanner overwrites its buffer.
		want = HashLine(scanner.Bytes())
	}

	if err := scanner.Err(); err != nil {
		return VerifyResult{Error: fmt.Sprintf("read audit log: %v", err)}
	}

	return VerifyResult{Valid: true, Lines: lines}
}
