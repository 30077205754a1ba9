package register

import (
	"slices"

	"github.com/ruteri/ccns/interfaces"
)

// chainSet keeps enabled chains in the order they were first enabled.
type chainSet struct {
	order   []interfaces.ChainSelector
	configs map[interfaces.ChainSelector]interfaces.ChainConfig
}

func newChainSet() *chainSet {
	return &chainSet{configs: make(map[interfaces.ChainSelector]interfaces.ChainConfig)}
}

// upsert stores cfg. Re-enabling a chain keeps its position.
func (s *chainSet) upsert(cfg interfaces.ChainConfig) (updated bool) {
	_, updated = s.configs[cfg.ChainSelector]
	if !updated {
		s.order = append(s.order, cfg.ChainSelector)
	}
	s.configs[cfg.ChainSelector] = cfg
	return updated
}

func (s *chainSet) remove(selector interfaces.ChainSelector) bool {
	if _, ok := s.configs[selector]; !ok {
		return false
	}
	delete(s.configs, selector)
	s.order = slices.DeleteFunc(s.order, func(sel interfaces.ChainSelector) bool { return sel == selector })
	return true
}

func (s *chainSet) get(selector interfaces.ChainSelector) (interfaces.ChainConfig, bool) {
	cfg, ok := s.configs[selector]
	return cfg, ok
}

func (s *chainSet) list() []interfaces.ChainConfig {
	out := make([]interfaces.ChainConfig, 0, len(s.order))
	for _, sel := range s.order {
		out = append(out, s.configs[sel])
	}
	return out
}
