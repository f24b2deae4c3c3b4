// Package evolution implements C8: the EvolutionEngine. Maintains a fixed-
// size StrategyPopulation per evolvable agent type, evaluates fitness
// against FeedbackCollector's observed success rates, and advances one
// generation at a time via elitism + tournament selection + per-gene
// mutation.
//
// Grounded on the teacher's internal/evolution.Engine (Strategy struct,
// float mutation, fitness accounting) and internal/genome.Genome (typed,
// versioned evolvable parameter sets), generalized from a single current
// strategy to a full population with selection per the Design Notes
// re-architecture directive.
package evolution

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clawinfra/growthkernel/internal/kerrors"
	"github.com/clawinfra/growthkernel/internal/sharedmemory"
	"github.com/clawinfra/growthkernel/internal/types"
)

const (
	populationSize  = 10
	eliteCount      = 2
	tournamentSize  = 3
	mutationRate    = 0.2
	mutationIntensity = 0.1

	deployFitnessAuto    = 0.8 // "high" confidence — deploys automatically
	deployFitnessPending = 0.6 // "medium" confidence — requires operator confirmation

	// deployedConfigTTL matches the KVStore retention table (§6) for
	// p3:deployed_config:{agent} and p3:pending_config:{agent}.
	deployedConfigTTL = 30 * 24 * time.Hour
	// evolutionReportTTL matches p3:evolution_report:{id}'s 90-day entry.
	evolutionReportTTL = 90 * 24 * time.Hour
)

// BaseSuccessRateProvider supplies FeedbackCollector's observed base
// success rate for an agent type, the multiplier in the fitness formula.
type BaseSuccessRateProvider interface {
	BaseSuccessRate(agentType string) float64
}

// Engine is the EvolutionEngine described in §4.8.
type Engine struct {
	sm      *sharedmemory.SharedMemory
	logger  *slog.Logger
	rng     *rand.Rand

	mu           sync.Mutex
	populations  map[string]*population
}

type population struct {
	agentType  string
	strategies []types.AgentStrategy
	generation int
}

// New constructs an EvolutionEngine with a time-seeded RNG.
func New(sm *sharedmemory.SharedMemory, logger *slog.Logger) *Engine {
	return NewWithSeed(sm, logger, time.Now().UnixNano())
}

// NewWithSeed constructs an EvolutionEngine with a deterministic RNG seed,
// for reproducible tests.
func NewWithSeed(sm *sharedmemory.SharedMemory, logger *slog.Logger, seed int64) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		sm:          sm,
		logger:      logger.With("component", "evolution"),
		rng:         rand.New(rand.NewSource(seed)),
		populations: make(map[string]*population),
	}
}

// ErrUnknownAgentType is returned when agentType has no declared gene table.
var ErrUnknownAgentType = fmt.Errorf("evolution: unknown agent type: %w", kerrors.ErrInvalid)

// RunGeneration advances agentType's population by one generation and
// returns the best resulting strategy. baseSuccessRate comes from
// FeedbackCollector (§4.8's fitness formula multiplier).
func (e *Engine) RunGeneration(agentType string, baseSuccessRate float64) (types.AgentStrategy, error) {
	specs, ok := genesFor(agentType)
	if !ok {
		return types.AgentStrategy{}, fmt.Errorf("%s: %w", agentType, ErrUnknownAgentType)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pop := e.populations[agentType]
	if pop == nil {
		pop = e.seedPopulation(agentType, specs)
		e.populations[agentType] = pop
	}

	e.evaluateFitness(pop, baseSuccessRate)

	sorted := append([]types.AgentStrategy(nil), pop.strategies...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].FitnessScore > sorted[j].FitnessScore })

	pop.generation++
	next := make([]types.AgentStrategy, 0, populationSize)
	for i := 0; i < eliteCount && i < len(sorted); i++ {
		elite := sorted[i]
		elite.Generation = pop.generation
		next = append(next, elite)
	}
	for len(next) < populationSize {
		parent := e.tournamentSelect(sorted)
		offspring := e.mutate(parent, specs, agentType, pop.generation)
		next = append(next, offspring)
	}
	pop.strategies = next

	best := next[0]
	for _, s := range next {
		if s.FitnessScore > best.FitnessScore {
			best = s
		}
	}

	deployment := e.applyDeploymentPolicy(agentType, best)
	e.recordReport(agentType, pop.generation, best, deployment)
	e.logger.Info("evolution generation advanced", "agent_type", agentType, "generation", pop.generation, "best_fitness", best.FitnessScore)
	return best, nil
}

// recordReport persists an EvolutionReport under p3:evolution_report:{id}
// (§6, 90d TTL) summarizing this generation's outcome.
func (e *Engine) recordReport(agentType string, generation int, best types.AgentStrategy, deployment string) {
	report := types.EvolutionReport{
		ReportID:       uuid.NewString(),
		AgentType:      agentType,
		Generation:     generation,
		BestStrategyID: best.StrategyID,
		BestFitness:    best.FitnessScore,
		Deployment:     deployment,
		CreatedAt:      time.Now(),
	}
	e.sm.Store("p3:evolution_report:"+report.ReportID, report, evolutionReportTTL)
}

func (e *Engine) seedPopulation(agentType string, specs map[string]geneSpec) *population {
	pop := &population{agentType: agentType}
	for i := 0; i < populationSize; i++ {
		genes := make(map[string]types.StrategyGene, len(specs))
		for name, spec := range specs {
			genes[name] = types.StrategyGene{
				ParameterName: name,
				Value:         spec.Default,
				MutationLow:   spec.MutationLow,
				MutationHigh:  spec.MutationHigh,
				Generation:    0,
			}
		}
		pop.strategies = append(pop.strategies, types.AgentStrategy{
			StrategyID: fmt.Sprintf("%s-gen0-%d", agentType, i),
			AgentType:  agentType,
			Genes:      genes,
			CreatedAt:  time.Now(),
			Generation: 0,
		})
	}
	return pop
}

// evaluateFitness applies §4.8's fitness formula in place. Strategies with
// no recorded trials yet (fresh offspring) get
// base_success_rate·uniform(0.8,1.2) to encourage exploration.
func (e *Engine) evaluateFitness(pop *population, baseSuccessRate float64) {
	for i := range pop.strategies {
		s := &pop.strategies[i]
		total := s.SuccessCount + s.FailureCount
		if total == 0 {
			s.FitnessScore = baseSuccessRate * (0.8 + e.rng.Float64()*0.4)
			continue
		}
		s.FitnessScore = (float64(s.SuccessCount) / float64(total)) * baseSuccessRate
	}
}

// tournamentSelect picks tournamentSize random candidates from ranked and
// returns the fittest.
func (e *Engine) tournamentSelect(ranked []types.AgentStrategy) types.AgentStrategy {
	best := ranked[e.rng.Intn(len(ranked))]
	for i := 1; i < tournamentSize; i++ {
		candidate := ranked[e.rng.Intn(len(ranked))]
		if candidate.FitnessScore > best.FitnessScore {
			best = candidate
		}
	}
	return best
}

// mutate produces one offspring of parent: each gene independently
// mutated with probability mutationRate by an amount drawn uniformly from
// [mutation_low*intensity, mutation_high*intensity].
func (e *Engine) mutate(parent types.AgentStrategy, specs map[string]geneSpec, agentType string, generation int) types.AgentStrategy {
	genes := make(map[string]types.StrategyGene, len(parent.Genes))
	for name, gene := range parent.Genes {
		if e.rng.Float64() < mutationRate {
			spec := specs[name]
			low := spec.MutationLow * mutationIntensity
			high := spec.MutationHigh * mutationIntensity
			delta := low + e.rng.Float64()*(high-low)
			gene.Value += delta
		}
		gene.Generation = generation
		genes[name] = gene
	}
	return types.AgentStrategy{
		StrategyID:       fmt.Sprintf("%s-gen%d-%d", agentType, generation, e.rng.Int63()),
		AgentType:        agentType,
		Genes:            genes,
		ParentStrategyID: parent.StrategyID,
		CreatedAt:        time.Now(),
		Generation:       generation,
	}
}

// applyDeploymentPolicy implements §4.8's deployment rule: fitness > 0.8
// deploys automatically; 0.6 < fitness <= 0.8 is written as pending and
// needs ConfirmDeploy; fitness <= 0.6 is not deployed. Returns the
// resulting deployment label for the generation's EvolutionReport.
func (e *Engine) applyDeploymentPolicy(agentType string, best types.AgentStrategy) string {
	switch {
	case best.FitnessScore > deployFitnessAuto:
		e.sm.Store("p3:deployed_config:"+agentType, best, deployedConfigTTL)
		return "auto"
	case best.FitnessScore > deployFitnessPending:
		e.sm.Store("p3:pending_config:"+agentType, best, deployedConfigTTL)
		return "pending"
	}
	return "none"
}

// ConfirmDeploy promotes a pending medium-confidence strategy to deployed,
// the manual API §4.8 requires for confidence="medium" deploys.
func (e *Engine) ConfirmDeploy(agentType string) error {
	v, err := e.sm.Get("p3:pending_config:" + agentType)
	if err != nil {
		return fmt.Errorf("no pending deployment for %s: %w", agentType, err)
	}
	e.sm.Store("p3:deployed_config:"+agentType, v, deployedConfigTTL)
	e.sm.Delete("p3:pending_config:" + agentType)
	return nil
}

// RecordOutcome updates a strategy's trial counters after it has been used
// in production, feeding the next generation's fitness evaluation.
func (e *Engine) RecordOutcome(agentType, strategyID string, success bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pop := e.populations[agentType]
	if pop == nil {
		return
	}
	for i := range pop.strategies {
		if pop.strategies[i].StrategyID != strategyID {
			continue
		}
		if success {
			pop.strategies[i].SuccessCount++
		} else {
			pop.strategies[i].FailureCount++
		}
		return
	}
}
