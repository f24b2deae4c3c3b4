package evolution

import (
	_ "embed"
	"sort"

	"github.com/BurntSushi/toml"
)

//go:embed genes.toml
var genesTOML []byte

// geneSpec is the declarative definition of one evolvable parameter: its
// starting value and the bounds a single mutation step may move it.
type geneSpec struct {
	Default      float64 `toml:"default"`
	MutationLow  float64 `toml:"mutation_low"`
	MutationHigh float64 `toml:"mutation_high"`
}

// geneTable loads the embedded gene tables once at package init, the way
// the teacher loads its embedded skill.toml tool table.
var geneTable map[string]map[string]geneSpec

func init() {
	if _, err := toml.Decode(string(genesTOML), &geneTable); err != nil {
		panic("evolution: invalid embedded genes.toml: " + err.Error())
	}
}

// AgentTypes returns the evolvable agent types in a stable order.
func AgentTypes() []string {
	out := make([]string, 0, len(geneTable))
	for t := range geneTable {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func genesFor(agentType string) (map[string]geneSpec, bool) {
	specs, ok := geneTable[agentType]
	return specs, ok
}
