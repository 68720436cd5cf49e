package demand

// Artifact is the demand-graph file consumed by the simulation.
type Artifact struct {
	Points []Point `json:"points"`
	Pops   []Pop   `json:"pops"`
}

// Point is one territory. Shares are null when the region total is zero.
type Point struct {
	ID              string     `json:"id"`
	Name            string     `json:"name,omitempty"`
	Location        [2]float64 `json:"location"`
	Jobs            int        `json:"jobs"`
	Residents       int        `json:"residents"`
	PopulationShare *float64   `json:"populationShare"`
	JobShare        *float64   `json:"jobShare"`
	PopIDs          []string   `json:"popIds"`
}

// Pop is one demand edge.
type Pop struct {
	ID              string `json:"id"`
	ResidenceID     string `json:"residenceId"`
	JobID           string `json:"jobId"`
	Size            int    `json:"size"`
	DrivingDistance int    `json:"drivingDistance"`
	DrivingSeconds  int    `json:"drivingSeconds"`
}

// Artifact renders the graph in its wire form.
func (g *Graph) Artifact() Artifact {
	a := Artifact{
		Points: make([]Point, 0, len(g.Territories)),
		Pops:   make([]Pop, 0, len(g.Edges)),
	}
	for _, t := range g.Territories {
		p := Point{
			ID:        t.ID,
			Name:      t.Name,
			Location:  t.Anchor.Array(),
			Jobs:      t.Jobs,
			Residents: t.Population,
			PopIDs:    t.EdgeIDs,
		}
		if p.PopIDs == nil {
			p.PopIDs = []string{}
		}
		if t.PopulationShare.Valid {
			v := t.PopulationShare.Value
			p.PopulationShare = &v
		}
		if t.JobShare.Valid {
			v := t.JobShare.Value
			p.JobShare = &v
		}
		a.Points = append(a.Points, p)
	}
	for _, e := range g.Edges {
		a.Pops = append(a.Pops, Pop{
			ID:              e.ID,
			ResidenceID:     e.ResidenceID,
			JobID:           e.JobID,
			Size:            e.Size,
			DrivingDistance: e.DistanceMeters,
			DrivingSeconds:  e.TravelSeconds,
		})
	}
	return a
}
