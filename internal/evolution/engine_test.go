package evolution

import (
	"errors"
	"testing"

	"github.com/clawinfra/growthkernel/internal/sharedmemory"
	"github.com/clawinfra/growthkernel/internal/types"
)

func TestUnknownAgentTypeIsRejected(t *testing.T) {
	sm := sharedmemory.New(nil)
	defer sm.Stop()
	e := NewWithSeed(sm, nil, 1)

	if _, err := e.RunGeneration("not_a_real_agent", 0.5); !errors.Is(err, ErrUnknownAgentType) {
		t.Fatalf("expected ErrUnknownAgentType, got %v", err)
	}
}

func TestRunGenerationSeedsPopulationOfTen(t *testing.T) {
	sm := sharedmemory.New(nil)
	defer sm.Stop()
	e := NewWithSeed(sm, nil, 42)

	best, err := e.RunGeneration("pain_scanner", 0.9)
	if err != nil {
		t.Fatalf("RunGeneration: %v", err)
	}
	if len(e.populations["pain_scanner"].strategies) != populationSize {
		t.Fatalf("expected population size %d, got %d", populationSize, len(e.populations["pain_scanner"].strategies))
	}
	if best.Generation != 1 {
		t.Fatalf("expected best strategy at generation 1, got %d", best.Generation)
	}
}

// TestEvolutionOneGenerationPreservesElites is the seed scenario from §8:
// after one generation, the top two strategies by fitness survive
// unmutated into the next population.
func TestEvolutionOneGenerationPreservesElites(t *testing.T) {
	sm := sharedmemory.New(nil)
	defer sm.Stop()
	e := NewWithSeed(sm, nil, 7)

	pop := e.seedPopulation("trend_hunter", geneTable["trend_hunter"])
	pop.strategies[0].SuccessCount, pop.strategies[0].FailureCount = 9, 1
	pop.strategies[1].SuccessCount, pop.strategies[1].FailureCount = 8, 2
	for i := 2; i < len(pop.strategies); i++ {
		pop.strategies[i].SuccessCount, pop.strategies[i].FailureCount = 1, 9
	}
	e.populations["trend_hunter"] = pop

	e.evaluateFitness(pop, 0.5)
	bestBefore := pop.strategies[0]

	if _, err := e.RunGeneration("trend_hunter", 0.5); err != nil {
		t.Fatalf("RunGeneration: %v", err)
	}

	found := false
	for _, s := range e.populations["trend_hunter"].strategies {
		if s.StrategyID == bestBefore.StrategyID {
			found = true
			for name, g := range s.Genes {
				if g.Value != bestBefore.Genes[name].Value {
					t.Fatalf("expected elite gene %s unchanged, before=%v after=%v", name, bestBefore.Genes[name].Value, g.Value)
				}
			}
		}
	}
	if !found {
		t.Fatalf("expected top strategy %s to survive as an elite", bestBefore.StrategyID)
	}
}

func TestDeploymentPolicyThresholds(t *testing.T) {
	sm := sharedmemory.New(nil)
	defer sm.Stop()
	e := NewWithSeed(sm, nil, 3)

	// Drive enough generations with a high base rate that at least one
	// strategy clears the automatic-deploy threshold.
	for i := 0; i < 20; i++ {
		if _, err := e.RunGeneration("pain_scanner", 1.0); err != nil {
			t.Fatalf("RunGeneration: %v", err)
		}
	}

	if _, err := sm.Get("p3:deployed_config:pain_scanner"); err != nil {
		t.Fatalf("expected an automatic deployment to have been written: %v", err)
	}
}

func TestConfirmDeployPromotesPending(t *testing.T) {
	sm := sharedmemory.New(nil)
	defer sm.Stop()
	e := NewWithSeed(sm, nil, 9)

	pending := types.AgentStrategy{StrategyID: "scene_observer-pending", AgentType: "scene_observer", FitnessScore: 0.7}
	e.applyDeploymentPolicy("scene_observer", pending)

	if err := e.ConfirmDeploy("scene_observer"); err != nil {
		t.Fatalf("ConfirmDeploy: %v", err)
	}
	if _, err := sm.Get("p3:deployed_config:scene_observer"); err != nil {
		t.Fatalf("expected deployed config after confirm: %v", err)
	}
	if _, err := sm.Get("p3:pending_config:scene_observer"); err == nil {
		t.Fatalf("expected pending config cleared after confirm")
	}
}
