package store

// Render is one stored offline render.
type Render struct {
	ID      string
	SceneID string

	// Duration is the rendered span in seconds.
	Duration   float64
	StreamHash string
	EventCount int

	// Evicted lists generators evicted during the render, in order.
	Evicted []string

	EngineVersion string
	IRVersion     string
}

// SceneRecord is a stored scene without its configuration body.
type SceneRecord struct {
	ID   string
	Name string
	Seed uint64
}
