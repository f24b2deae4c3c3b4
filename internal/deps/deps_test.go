package deps

import (
	"path/filepath"
	"testing"

	"github.com/clawinfra/growthkernel/internal/config"
)

func TestRegisterAllWiresEveryComponent(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.DataDir = filepath.Join(t.TempDir(), "data")

	d, err := RegisterAll(cfg, nil)
	if err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	defer d.Close()

	if d.SharedMemory == nil || d.Lineage == nil || d.Registry == nil || d.Synthesis == nil {
		t.Fatal("expected P0-facing components wired")
	}
	if d.Feedback == nil || d.Learning == nil || d.Evolution == nil {
		t.Fatal("expected feedback/learning/evolution wired")
	}
	if d.Lifecycle == nil || d.Scheduler == nil || d.Meridian == nil || d.Orchestrator == nil {
		t.Fatal("expected lifecycle/scheduler/meridian/orchestrator wired")
	}

	for _, jobID := range []string{"p0_daily_sync", "p3_evolution", "data_lifecycle", "quality_check", "meridian_monitor"} {
		if _, err := d.Scheduler.History(jobID); err != nil {
			t.Fatalf("expected job %s registered, got %v", jobID, err)
		}
	}
}

func TestCloseIsIdempotentSafe(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.DataDir = filepath.Join(t.TempDir(), "data")

	d, err := RegisterAll(cfg, nil)
	if err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	d.Close()
}
