// Package demand turns territory totals into an all-pairs commuter demand
// graph.
package demand

import (
	"math"
	"strconv"

	"github.com/sells-group/demand-cli/internal/geometry"
	"github.com/sells-group/demand-cli/internal/model"
)

// SecondsPerMeter converts a straight-line trip length into travel time,
// roughly an 8.33 m/s average trip speed.
const SecondsPerMeter = 0.12

// Graph is the demand graph of one region.
type Graph struct {
	// Territories is the arena edges index into. Shares and EdgeIDs are set.
	Territories []*model.Territory
	Edges       []model.DemandEdge
	Population  int
	Jobs        int
}

// PopulationDefined reports whether population shares are meaningful.
func (g *Graph) PopulationDefined() bool { return g.Population > 0 }

// JobsDefined reports whether job shares are meaningful.
func (g *Graph) JobsDefined() bool { return g.Jobs > 0 }

// Synthesize computes territory shares and emits one edge for every ordered
// (residence, job) pair, self-pairs included. Edge ids are assigned in
// emission order and recorded on the residence territory.
//
// When the region has no jobs every job share is undefined and every edge
// has size zero.
func Synthesize(territories []*model.Territory) *Graph {
	g := &Graph{
		Territories: territories,
		Edges:       make([]model.DemandEdge, 0, len(territories)*len(territories)),
	}
	for _, t := range territories {
		g.Population += t.Population
		g.Jobs += t.Jobs
	}
	for _, t := range territories {
		t.PopulationShare = model.NewShare(t.Population, g.Population)
		t.JobShare = model.NewShare(t.Jobs, g.Jobs)
		t.EdgeIDs = make([]string, 0, len(territories))
	}

	for _, r := range territories {
		for _, j := range territories {
			e := newEdge(len(g.Edges), r, j)
			g.Edges = append(g.Edges, e)
			r.EdgeIDs = append(r.EdgeIDs, e.ID)
		}
	}
	return g
}

func newEdge(seq int, r, j *model.Territory) model.DemandEdge {
	size := 0
	if j.JobShare.Valid {
		size = int(math.Round(j.JobShare.Value * float64(r.Population)))
	}
	meters := int(math.Round(geometry.Distance(r.Anchor, j.Anchor)))
	return model.DemandEdge{
		ID:             strconv.Itoa(seq),
		ResidenceID:    r.ID,
		JobID:          j.ID,
		Size:           size,
		DistanceMeters: meters,
		TravelSeconds:  int(math.Round(float64(meters) * SecondsPerMeter)),
	}
}
