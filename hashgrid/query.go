package hashgrid

import "fmt"

// Relevance is a query radius normalized to 0..1: the fraction of the grid,
// per axis, a neighborhood query should cover.
type Relevance float64

const (
	RelevanceMin Relevance = 0
	RelevanceMax Relevance = 1
)

// NewRelevance clamps v into 0..1.
func NewRelevance(v float64) Relevance {
	if v < 0 {
		return RelevanceMin
	}
	if v > 1 {
		return RelevanceMax
	}
	return Relevance(v)
}

func (r Relevance) Value() float64 {
	return float64(r)
}

// QueryKind selects how much of the grid a query inspects.
type QueryKind int

const (
	// Single reads the exact cell under the query coordinates.
	Single QueryKind = iota
	// Search scans a neighborhood for one entity id and stops at the
	// first hit.
	Search
	// Neighbour collects every bucket in the neighborhood.
	Neighbour
)

func (k QueryKind) String() string {
	switch k {
	case Single:
		return "single"
	case Search:
		return "search"
	case Neighbour:
		return "neighbour"
	}
	return "unknown"
}

// Query addresses the grid by world coordinates. Radius only matters to
// Search and Neighbour; TargetID only to Search.
type Query struct {
	X, Y, Z  float64
	Radius   Relevance
	Kind     QueryKind
	TargetID uint64
}

// SingleQuery reads one cell.
func SingleQuery(x, y, z float64) Query {
	return Query{X: x, Y: y, Z: z, Kind: Single}
}

// SearchQuery looks for the entity id in the neighborhood scaled by radius.
func SearchQuery(id uint64, x, y, z float64, radius float64) Query {
	return Query{X: x, Y: y, Z: z, Kind: Search, TargetID: id, Radius: NewRelevance(radius)}
}

// NeighbourQuery collects everything in the neighborhood scaled by radius.
func NeighbourQuery(x, y, z float64, radius float64) Query {
	return Query{X: x, Y: y, Z: z, Kind: Neighbour, Radius: NewRelevance(radius)}
}

func (q Query) String() string {
	return fmt.Sprintf("query[%s radius=%.2f at (%g, %g, %g)]", q.Kind, q.Radius.Value(), q.X, q.Y, q.Z)
}

// Result carries the query it answers, the hashes of the cells that were
// read, and the matching entities.
type Result[E Entity] struct {
	Query Query
	Cells []uint64
	Data  []E
}

func (r Result[E]) String() string {
	return fmt.Sprintf("result[%s cells=%d entities=%d]", r.Query, len(r.Cells), len(r.Data))
}
