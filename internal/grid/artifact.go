package grid

// Artifact is the grid-index file consumed by the simulation. Keys are kept
// short because the file can hold hundreds of thousands of buildings.
type Artifact struct {
	CellHeight float64          `json:"cs"`
	BBox       [4]float64       `json:"bbox"`
	Grid       [2]int           `json:"grid"`
	Cells      [][]int          `json:"cells"`
	Buildings  []BuildingRecord `json:"buildings"`
	Stats      ArtifactStats    `json:"stats"`
}

// BuildingRecord is one indexed building. Cells refer to buildings by their
// position in Artifact.Buildings.
type BuildingRecord struct {
	BBox             [4]float64     `json:"b"`
	UndergroundDepth int            `json:"f"`
	Polygon          [][][2]float64 `json:"p"`
}

// ArtifactStats summarizes the indexed buildings.
type ArtifactStats struct {
	Count    int `json:"count"`
	MaxDepth int `json:"maxDepth"`
}

// Artifact renders the index in its wire form.
func (idx *Index) Artifact() Artifact {
	cols, rows := idx.Dimensions()
	a := Artifact{
		CellHeight: idx.CellHeight,
		Grid:       [2]int{cols, rows},
		Cells:      make([][]int, 0, len(idx.Cells)),
		Buildings:  make([]BuildingRecord, 0, len(idx.Buildings)),
		Stats: ArtifactStats{
			Count:    idx.Stats.BuildingCount,
			MaxDepth: idx.Stats.MaxDepth,
		},
	}
	if len(idx.Buildings) > 0 {
		a.BBox = idx.BBox.Array()
	}

	for _, c := range idx.SortedCells() {
		members := idx.Cells[c]
		entry := make([]int, 0, len(members)+2)
		entry = append(entry, c.X, c.Y)
		entry = append(entry, members...)
		a.Cells = append(a.Cells, entry)
	}

	for _, b := range idx.Buildings {
		pts := b.Footprint.Points()
		ring := make([][2]float64, len(pts))
		for i, p := range pts {
			ring[i] = p.Array()
		}
		a.Buildings = append(a.Buildings, BuildingRecord{
			BBox:             b.Footprint.BBox.Array(),
			UndergroundDepth: b.UndergroundDepth,
			Polygon:          [][][2]float64{ring},
		})
	}
	return a
}
