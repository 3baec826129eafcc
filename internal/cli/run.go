package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flowguard/flowguard/internal/approval"
	"github.com/flowguard/flowguard/internal/audit"
	"github.com/flowguard/flowguard/internal/govern"
	"github.com/flowguard/flowguard/internal/notify"
	"github.com/flowguard/flowguard/internal/policy"
	"github.com/flowguard/flowguard/internal/runner"
)

var (
	runWorkflowFile string
	runGovernance   string
	runRunnerURL    string
	runAuditLog     string
	runRequester    string
	runDryRun       bool
	runInteractive  bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runWorkflowFile, "workflow", "f", "", "Path to workflow YAML (required)")
	runCmd.Flags().StringVar(&runGovernance, "governance", "", "Path to governance config YAML (default: ~/.flowguard/governance.yaml)")
	runCmd.Flags().StringVar(&runRunnerURL, "runner-url", "", "Execution engine URL (default: built-in simulator)")
	runCmd.Flags().StringVar(&runAuditLog, "audit-log", "", "Path to audit log JSONL (default: ~/.flowguard/logs/governance-audit.jsonl)")
	runCmd.Flags().StringVar(&runRequester, "requester", "", "Requester identity recorded on approval requests")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Hand the engine a dry-run spec")
	runCmd.Flags().BoolVarP(&runInteractive, "interactive", "i", false, "Resolve approval requests on the terminal")
	_ = runCmd.MarkFlagRequired("workflow")
}

var runCmd = &cobra.Command{
	Use:   "run -f workflow.yaml",
	Short: "Execute a workflow through governance",
	Long: "Validates the workflow, enforces governance policies, gates execution behind\n" +
		"human approval when required, delegates to the execution engine, and records\n" +
		"the audit trail. Exit code 77 indicates a policy block or denial, 75 a\n" +
		"pending approval.",
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := newLogger(false)
	defer func() { _ = logger.Sync() }()

	wf, err := govern.LoadWorkflow(runWorkflowFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid workflow: %v\n", err)
		os.Exit(exitConfig)
	}

	cfg, err := policy.LoadGovernanceConfig(runGovernance)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid governance config: %v\n", err)
		os.Exit(exitConfig)
	}

	logPath := runAuditLog
	if logPath == "" {
		logPath = audit.DefaultPath()
	}
	auditLog, err := audit.Open(logPath)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer auditLog.Close()

	var engine runner.Runner = runner.NewSimulator(logger)
	if runRunnerURL != "" {
		engine = runner.NewHTTPRunner(runRunnerURL, 0, logger)
	}

	var notifier approval.Notifier = notify.NewLogNotifier(logger)
	if d := notify.NewDispatcher(notify.LoadConfigs(runGovernance), logger); d != nil {
		notifier = d
	}

	govCfg := govern.Config{
		Approvals: approval.NewCoordinator(notifier, logger),
		Runner:    engine,
		AuditLog:  auditLog,
		Requester: requesterIdentity(),
		DryRun:    runDryRun,
		Logger:    logger,
	}
	if runInteractive {
		govCfg.Prompt = terminalPrompt
	}

	eng, err := govern.New(govCfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	out, err := eng.Execute(ctx, wf, cfg)
	if err != nil {
		return err
	}

	printOutcome(out)

	switch out.Status {
	case govern.StatusBlocked, govern.StatusDenied:
		os.Exit(exitBlocked)
	case govern.StatusPendingApproval:
		os.Exit(exitPending)
	case govern.StatusFailed:
		os.Exit(1)
	}
	return nil
}

func printOutcome(out *govern.Outcome) {
	if len(out.Result.Violations) > 0 {
		fmt.Printf("%-14s %-10s %s\n", "POLICY", "SEVERITY", "DESCRIPTION")
		for _, v := range out.Result.Violations {
			desc := v.Description
			if v.StepID != "" {
				desc = fmt.Sprintf("%s (step %s)", desc, v.StepID)
			}
			fmt.Printf("%-14s %-10s %s\n", v.Policy, v.Severity, desc)
		}
		fmt.Println()
	}

	switch out.Status {
	case govern.StatusCompleted:
		fmt.Printf("Workflow completed. Estimated cost $%.2f.\n", out.CostUSD)
	case govern.StatusBlocked:
		fmt.Println("Workflow blocked by policy.")
	case govern.StatusDenied:
		fmt.Printf("Workflow denied (approval %s).\n", out.ApprovalID)
	case govern.StatusPendingApproval:
		fmt.Printf("Approval pending: %s\n", out.ApprovalID)
		fmt.Println("Re-run once an approver has signed off, or use --interactive.")
	case govern.StatusFailed:
		fmt.Fprintf(os.Stderr, "Workflow failed: %s\n", out.RunError)
	}
}

// terminalPrompt resolves an approval request on stdin.
func terminalPrompt(req approval.Request) (string, bool, error) {
	fmt.Printf("\nApproval required for workflow %q\n", req.Workflow.ID)
	fmt.Printf("Reason:    %s\n", req.Reason)
	fmt.Printf("Approvers: %s\n", strings.Join(req.RequiredApprovers, ", "))

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Approver id: ")
	approver, err := reader.ReadString('\n')
	if err != nil {
		return "", false, err
	}

	fmt.Print("Approve? [y/N]: ")
	answer, err := reader.ReadString('\n')
	if err != nil {
		return "", false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))

	return strings.TrimSpace(approver), answer == "y" || answer == "yes", nil
}

func requesterIdentity() string {
	if runRequester != "" {
		return runRequester
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}
