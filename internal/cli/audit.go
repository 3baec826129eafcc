package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowguard/flowguard/internal/audit"
)

var (
	auditLogPath string

	tailLines int

	replayWorkflow string
	replayEvent    string
	replaySince    string
	replayJSON     bool
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.PersistentFlags().StringVar(&auditLogPath, "log", "", "Path to audit log JSONL (default: ~/.flowguard/logs/governance-audit.jsonl)")

	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditCmd.AddCommand(auditReplayCmd)

	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show")

	auditReplayCmd.Flags().StringVar(&replayWorkflow, "workflow", "", "Only entries for this workflow id")
	auditReplayCmd.Flags().StringVar(&replayEvent, "event", "", "Only entries with this event type")
	auditReplayCmd.Flags().StringVar(&replaySince, "since", "", "Only entries at or after this RFC 3339 time")
	auditReplayCmd.Flags().BoolVar(&replayJSON, "json", false, "Emit the replay result as JSON")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit trail operations",
	Long:  "Inspect the hash-chained governance audit log and check it for tampering.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify hash chain integrity of the audit log",
	Long: "Walks the JSONL audit log and validates that every entry's prev_hash matches\n" +
		"the SHA-256 of the previous line. Exits 0 if valid, 1 if tampered.",
	RunE: runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent audit log entries",
	Long:  "Prints the newest N entries of the audit log as indented JSON.",
	RunE:  runAuditTail,
}

var auditReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay the audit trail as a timeline",
	Long: "Reads the audit log, applies the workflow/event/time filters, and renders a\n" +
		"timeline with per-event summaries and trail totals.",
	RunE: runAuditReplay,
}

func logPath() string {
	if auditLogPath != "" {
		return auditLogPath
	}
	return audit.DefaultPath()
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	result := audit.Verify(logPath())
	if !result.Valid {
		fmt.Fprintf(os.Stderr, "chain broken at line %d: %s\n", result.ErrorLine, result.Error)
		os.Exit(1)
	}
	fmt.Printf("chain intact: %d entries\n", result.Lines)
	return nil
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	if tailLines <= 0 {
		return nil
	}

	f, err := os.Open(logPath())
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	// Ring of the newest N lines; the whole file never loads at once.
	ring := make([]string, tailLines)
	total := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		ring[total%tailLines] = scanner.Text()
		total++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	first := total - tailLines
	if first < 0 {
		first = 0
	}
	for i := first; i < total; i++ {
		line := ring[i%tailLines]
		var entry audit.Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			fmt.Println(line)
			continue
		}
		pretty, _ := json.MarshalIndent(entry, "", "  ")
		fmt.Println(string(pretty))
	}

	return nil
}

func runAuditReplay(cmd *cobra.Command, args []string) error {
	filter := audit.ReplayFilter{
		Workflow: replayWorkflow,
		Event:    audit.Event(replayEvent),
	}
	if replaySince != "" {
		from, err := time.Parse(time.RFC3339, replaySince)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --since value: %v\n", err)
			os.Exit(exitConfig)
		}
		filter.From = from
	}

	result, err := audit.Replay(logPath(), filter)
	if err != nil {
		return err
	}

	if replayJSON {
		out, err := audit.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	fmt.Print(audit.FormatTimeline(result))
	return nil
}
