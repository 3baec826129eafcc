package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunInitCreatesConfigs(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	initForce = false

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tmp, ".flowguard", "governance.yaml"))
	if err != nil {
		t.Fatalf("governance.yaml not created: %v", err)
	}
	if !strings.Contains(string(data), "policies:") {
		t.Error("governance.yaml missing policies section")
	}

	data, err = os.ReadFile(filepath.Join(tmp, ".flowguard", "shipper.yaml"))
	if err != nil {
		t.Fatalf("shipper.yaml not created: %v", err)
	}
	if !strings.Contains(string(data), "destination:") {
		t.Error("shipper.yaml missing destination section")
	}
}

func TestRunInitKeepsExistingWithoutForce(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	configDir := filepath.Join(tmp, ".flowguard")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatal(err)
	}
	sentinel := "# operator-tuned governance config\n"
	govPath := filepath.Join(configDir, "governance.yaml")
	if err := os.WriteFile(govPath, []byte(sentinel), 0o644); err != nil {
		t.Fatal(err)
	}

	initForce = false
	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	data, _ := os.ReadFile(govPath)
	if string(data) != sentinel {
		t.Error("governance.yaml was overwritten without --force")
	}
}

func TestRunInitForceOverwrites(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	configDir := filepath.Join(tmp, ".flowguard")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatal(err)
	}
	sentinel := "# operator-tuned governance config\n"
	govPath := filepath.Join(configDir, "governance.yaml")
	if err := os.WriteFile(govPath, []byte(sentinel), 0o644); err != nil {
		t.Fatal(err)
	}

	initForce = true
	defer func() { initForce = false }()
	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	data, _ := os.ReadFile(govPath)
	if string(data) == sentinel {
		t.Error("governance.yaml was not overwritten with --force")
	}
}

func TestWriteIfMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "governance.yaml")
	original := "policies: [security]\n"
	replacement := "policies: [compliance]\n"

	initForce = false
	wrote, err := writeIfMissing(path, original)
	if err != nil {
		t.Fatalf("writeIfMissing on a fresh path: %v", err)
	}
	if !wrote {
		t.Error("fresh path should report wrote=true")
	}

	wrote, err = writeIfMissing(path, replacement)
	if err != nil {
		t.Fatalf("writeIfMissing on an existing path: %v", err)
	}
	if wrote {
		t.Error("existing path should report wrote=false without --force")
	}
	if data, _ := os.ReadFile(path); string(data) != original {
		t.Errorf("existing content was replaced without --force: %q", string(data))
	}

	initForce = true
	defer func() { initForce = false }()
	wrote, err = writeIfMissing(path, replacement)
	if err != nil {
		t.Fatalf("writeIfMissing with --force: %v", err)
	}
	if !wrote {
		t.Error("--force should report wrote=true")
	}
	if data, _ := os.ReadFile(path); string(data) != replacement {
		t.Errorf("--force did not replace content: %q", string(data))
	}
}
