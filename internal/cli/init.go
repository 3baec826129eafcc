package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/flowguard/flowguard/internal/policy"
	"github.com/flowguard/flowguard/internal/shipper"
)

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config files")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap flowguard configuration",
	Long: `Creates ~/.flowguard with a commented default governance config and shipper
config. Existing files are kept unless --force is set.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}
	configDir := filepath.Join(home, ".flowguard")

	defaults := []struct {
		path    string
		content string
	}{
		{filepath.Join(configDir, "governance.yaml"), policy.DefaultGovernanceYAML()},
		{filepath.Join(configDir, "shipper.yaml"), shipper.DefaultYAML()},
	}

	for _, d := range defaults {
		wrote, err := writeIfMissing(d.path, d.content)
		if err != nil {
			return err
		}
		if wrote {
			fmt.Printf("wrote %s\n", d.path)
		} else {
			fmt.Printf("kept  %s (pass --force to overwrite)\n", d.path)
		}
	}

	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  flowguard run -f workflow.yaml   govern a workflow run")
	fmt.Println("  flowguard sync                   ship assistant logs once")
	fmt.Println("  flowguard watch                  ship continuously")

	return nil
}

// writeIfMissing writes content to path unless it exists, or always
// with --force. Reports whether the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if _, err := os.Stat(path); err == nil && !initForce {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
