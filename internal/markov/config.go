package markov

// PresetAnalogiqueA names the built-in Analogique A screen chain.
const PresetAnalogiqueA = "analogique_a"

// Config is the declarative form of a Model.
// A Preset supplies states, weights and materials; explicit fields override.
type Config struct {
	Preset    string              `json:"preset,omitempty" yaml:"preset,omitempty" validate:"omitempty,oneof=analogique_a"`
	States    []string            `json:"states,omitempty" yaml:"states,omitempty" validate:"omitempty,unique,dive,required"`
	Weights   [][]float64         `json:"weights,omitempty" yaml:"weights,omitempty"`
	Terminal  []string            `json:"terminal,omitempty" yaml:"terminal,omitempty"`
	Initial   string              `json:"initial,omitempty" yaml:"initial,omitempty"`
	Materials map[string]Material `json:"materials,omitempty" yaml:"materials,omitempty" validate:"omitempty,dive"`
}

// Build returns a fresh model and the per-state materials.
func (c Config) Build() (*Model, map[string]Material, error) {
	states, weights := c.States, c.Weights
	materials := map[string]Material{}
	initial := c.Initial

	switch c.Preset {
	case "":
	case PresetAnalogiqueA:
		if len(states) == 0 {
			states = screenStates
		}
		if len(weights) == 0 {
			weights = AnalogiqueWeights()
		}
		if initial == "" {
			initial = "B"
		}
		materials = AnalogiqueMaterials()
	default:
		return nil, nil, invalid("preset", "unknown preset %q", c.Preset)
	}
	for s, mat := range c.Materials {
		materials[s] = mat
	}

	opts := []Option{WithTerminal(c.Terminal...)}
	if initial != "" {
		opts = append(opts, WithInitial(initial))
	}
	m, err := NewModel(states, weights, opts...)
	if err != nil {
		return nil, nil, err
	}
	for s := range materials {
		if _, ok := m.index[s]; !ok {
			return nil, nil, invalid("materials", "names unknown state %q", s)
		}
	}
	return m, materials, nil
}
