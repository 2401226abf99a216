package markov

// Span is an inclusive integer range.
type Span struct {
	Low  int `json:"low" yaml:"low" validate:"gte=0,lte=127"`
	High int `json:"high" yaml:"high" validate:"gte=0,lte=127,gtefield=Low"`
}

// Material is the musical payload associated with a state: the pitch and
// velocity regions a state draws from and its event density.
type Material struct {
	Pitch    Span    `json:"pitch" yaml:"pitch"`
	Velocity Span    `json:"velocity" yaml:"velocity"`
	Density  float64 `json:"density" yaml:"density" validate:"gt=0"`
}

// Screen fields of Analogique A.
var (
	PitchF0 = Span{Low: 48, High: 72}
	PitchF1 = Span{Low: 60, High: 84}

	IntensityG0 = Span{Low: 40, High: 80}
	IntensityG1 = Span{Low: 80, High: 120}

	DensityD0 = 5.0
	DensityD1 = 15.0
)

// ScreenDuration is the length of one Analogique A screen, in seconds.
const ScreenDuration = 1.1

// screenStates are the eight screens, each a combination of pitch (f),
// intensity (g) and density (d) fields.
var screenStates = []string{"A", "B", "C", "D", "E", "F", "G", "H"}

// mtpz is the screen transition matrix of Analogique A.
var mtpz = [][]float64{
	{0.10, 0.05, 0.10, 0.05, 0.10, 0.05, 0.20, 0.30},
	{0.05, 0.10, 0.05, 0.10, 0.05, 0.10, 0.30, 0.25},
	{0.10, 0.05, 0.10, 0.05, 0.10, 0.05, 0.30, 0.25},
	{0.05, 0.10, 0.05, 0.10, 0.05, 0.10, 0.25, 0.30},
	{0.10, 0.05, 0.10, 0.05, 0.10, 0.05, 0.30, 0.25},
	{0.05, 0.10, 0.05, 0.10, 0.05, 0.10, 0.25, 0.30},
	{0.20, 0.30, 0.30, 0.25, 0.30, 0.25, 0.10, 0.05},
	{0.30, 0.25, 0.25, 0.30, 0.25, 0.30, 0.05, 0.10},
}

// AnalogiqueA returns the eight-screen chain, starting at screen B, and the
// material of each screen.
func AnalogiqueA() (*Model, map[string]Material) {
	m, err := NewModel(screenStates, mtpz, WithInitial("B"))
	if err != nil {
		panic("markov: analogique preset: " + err.Error())
	}
	return m, AnalogiqueMaterials()
}

// AnalogiqueMaterials maps screens A-H to their pitch, intensity and
// density fields.
func AnalogiqueMaterials() map[string]Material {
	materials := make(map[string]Material, len(screenStates))
	for i, s := range screenStates {
		mat := Material{Pitch: PitchF0, Velocity: IntensityG0, Density: DensityD0}
		if i&4 != 0 {
			mat.Pitch = PitchF1
		}
		if i&2 != 0 {
			mat.Velocity = IntensityG1
		}
		if i&1 != 0 {
			mat.Density = DensityD1
		}
		materials[s] = mat
	}
	return materials
}

// AnalogiqueWeights returns a copy of the Analogique A transition matrix.
func AnalogiqueWeights() [][]float64 {
	out := make([][]float64, len(mtpz))
	for i, row := range mtpz {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
