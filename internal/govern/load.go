package govern

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flowguard/flowguard/internal/model"
)

// LoadWorkflow reads a workflow document from a YAML file and
// validates its structure.
func LoadWorkflow(path string) (*model.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("govern: read workflow: %w", err)
	}
	var wf model.Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("govern: parse workflow %s: %w", path, err)
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return &wf, nil
}
