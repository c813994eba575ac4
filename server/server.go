// Package server exposes the spatial indexes over HTTP and WebSocket. A
// Handler owns one quadtree and one hash grid covering the same space and
// keeps them consistent behind a single lock.
package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"

	"github.com/SyedAnees21/spatial/featureflag"
	"github.com/SyedAnees21/spatial/geometry"
	"github.com/SyedAnees21/spatial/hashgrid"
	spatialhttp "github.com/SyedAnees21/spatial/http"
	"github.com/SyedAnees21/spatial/quadtree"
)

const ErrTypeBadRequest = "bad_request"

// Options configures the indexed space.
type Options struct {
	// Horizontal extent shared by both indexes.
	MinX, MinY float64
	MaxX, MaxY float64

	// Vertical extent of the hash grid. Zero means a flat 2D grid.
	MinZ, MaxZ float64

	// Per-node entity budget of the quadtree before it subdivides.
	TreeCapacity int

	// Hash grid resolution.
	GridCellsX int
	GridCellsY int
	GridFloors int

	// Clamp out-of-bounds grid entities instead of dropping them.
	GridWrap bool

	Flags featureflag.FeatureFlag
}

// Handler serves the spatial index API.
type Handler struct {
	mu    sync.RWMutex
	tree  *quadtree.Tree
	grid  *hashgrid.Grid[gridEntity]
	flags featureflag.FeatureFlag
}

func New(opts Options) (*Handler, error) {
	tree, err := quadtree.New(opts.MinX, opts.MinY, opts.MaxX, opts.MaxY, opts.TreeCapacity)
	if err != nil {
		return nil, errors.New("creating the quadtree failed").Wrap(err)
	}

	bounds := hashgrid.Bounds{
		CenterX: (opts.MinX + opts.MaxX) / 2,
		CenterY: (opts.MinY + opts.MaxY) / 2,
		CenterZ: (opts.MinZ + opts.MaxZ) / 2,
		SizeX:   opts.MaxX - opts.MinX,
		SizeY:   opts.MaxY - opts.MinY,
		SizeZ:   opts.MaxZ - opts.MinZ,
	}
	grid, err := hashgrid.New[gridEntity](bounds, opts.GridCellsX, opts.GridCellsY, opts.GridFloors, opts.GridWrap)
	if err != nil {
		return nil, errors.New("creating the hash grid failed").Wrap(err)
	}

	return &Handler{
		tree:  tree,
		grid:  grid,
		flags: opts.Flags,
	}, nil
}

// Insert places the entities in both indexes. Entities whose footprint falls
// outside the tree boundary are rejected and reported by id.
func (h *Handler) Insert(entities ...Entity) (inserted int, rejected []uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, e := range entities {
		if _, err := h.tree.Insert(e); err != nil {
			instrumentInsert(err)
			rejected = append(rejected, e.EntityID)
			continue
		}
		h.grid.Insert(gridEntity{Entity: e})
		instrumentInsert(nil)
		inserted++
	}

	indexedEntities.Set(float64(h.tree.Len()))
	return inserted, rejected
}

// QueryTree runs a geometry query against the quadtree.
func (h *Handler) QueryTree(q geometry.Geometry) []Entity {
	defer instrumentQuery("tree", q.Kind().String(), time.Now())

	h.mu.RLock()
	defer h.mu.RUnlock()

	hits := h.tree.Query(q)
	out := make([]Entity, 0, len(hits))
	for _, hit := range hits {
		if e, ok := hit.(Entity); ok {
			out = append(out, e)
		}
	}
	return out
}

// QueryGrid runs a cell query against the hash grid.
func (h *Handler) QueryGrid(q hashgrid.Query) hashgrid.Result[gridEntity] {
	defer instrumentQuery("grid", q.Kind.String(), time.Now())

	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.grid.Query(q)
}

// Clear empties both indexes and returns the number of removed entities.
func (h *Handler) Clear() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := len(h.tree.Clear())
	h.grid.Clear()
	indexedEntities.Set(0)
	return removed
}

// Len is the number of indexed entities.
func (h *Handler) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.tree.Len()
}

// Mux returns the public API routes.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/entities", h.HandleEntities)
	mux.HandleFunc("/query", h.HandleTreeQuery)
	mux.HandleFunc("/grid/query", h.HandleGridQuery)
	mux.HandleFunc("/grid/stats", h.HandleGridStats)
	mux.HandleFunc("/tree/nodes", h.HandleTreeNodes)
	mux.HandleFunc("/stats", h.HandleStats)
	return mux
}

type insertResponse struct {
	Inserted int      `json:"inserted"`
	Rejected []uint64 `json:"rejected,omitempty"`
}

// HandleEntities accepts a batch of entities on POST and clears the indexes
// on DELETE.
func (h *Handler) HandleEntities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var entities []Entity
		if err := json.NewDecoder(r.Body).Decode(&entities); err != nil {
			spatialhttp.ErrorResponse(w, http.StatusBadRequest, errors.New("decoding entities failed").
				WithType(ErrTypeBadRequest).
				Wrap(err))
			return
		}

		inserted, rejected := h.Insert(entities...)
		spatialhttp.OKResponse(w, http.StatusOK, insertResponse{
			Inserted: inserted,
			Rejected: rejected,
		})

	case http.MethodDelete:
		removed := h.Clear()
		spatialhttp.OKResponse(w, http.StatusOK, struct {
			Removed int `json:"removed"`
		}{Removed: removed})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type treeQueryRequest struct {
	Shape  string  `json:"shape"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Radius float64 `json:"radius"`
}

func (q treeQueryRequest) geometry() (geometry.Geometry, error) {
	switch q.Shape {
	case "point":
		return geometry.Point(q.X, q.Y), nil
	case "rect":
		return geometry.Rect(q.X, q.Y, q.Width, q.Height), nil
	case "circle":
		return geometry.Circle(q.Radius, q.X, q.Y), nil
	}
	return geometry.Geometry{}, errors.New("unknown query shape").
		WithType(ErrTypeBadRequest).
		WithTag("shape", q.Shape)
}

// HandleTreeQuery answers footprint queries from the quadtree.
func (h *Handler) HandleTreeQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req treeQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		spatialhttp.ErrorResponse(w, http.StatusBadRequest, errors.New("decoding query failed").
			WithType(ErrTypeBadRequest).
			Wrap(err))
		return
	}

	q, err := req.geometry()
	if err != nil {
		spatialhttp.ErrorResponse(w, http.StatusBadRequest, err)
		return
	}

	spatialhttp.OKResponse(w, http.StatusOK, struct {
		Entities []Entity `json:"entities"`
	}{Entities: h.QueryTree(q)})
}

type gridQueryRequest struct {
	Kind     string  `json:"kind"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Radius   float64 `json:"radius"`
	TargetID uint64  `json:"target_id"`
}

func (q gridQueryRequest) query() (hashgrid.Query, error) {
	switch q.Kind {
	case "single":
		return hashgrid.SingleQuery(q.X, q.Y, q.Z), nil
	case "search":
		return hashgrid.SearchQuery(q.TargetID, q.X, q.Y, q.Z, q.Radius), nil
	case "neighbour":
		return hashgrid.NeighbourQuery(q.X, q.Y, q.Z, q.Radius), nil
	}
	return hashgrid.Query{}, errors.New("unknown grid query kind").
		WithType(ErrTypeBadRequest).
		WithTag("kind", q.Kind)
}

type gridQueryResponse struct {
	Cells    []uint64 `json:"cells"`
	Entities []Entity `json:"entities"`
}

// HandleGridQuery answers position queries from the hash grid.
func (h *Handler) HandleGridQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req gridQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		spatialhttp.ErrorResponse(w, http.StatusBadRequest, errors.New("decoding query failed").
			WithType(ErrTypeBadRequest).
			Wrap(err))
		return
	}

	q, err := req.query()
	if err != nil {
		spatialhttp.ErrorResponse(w, http.StatusBadRequest, err)
		return
	}

	result := h.QueryGrid(q)

	resp := gridQueryResponse{Cells: result.Cells}
	for _, e := range result.Data {
		resp.Entities = append(resp.Entities, e.Entity)
	}
	spatialhttp.OKResponse(w, http.StatusOK, resp)
}

// HandleGridStats reports grid occupancy.
func (h *Handler) HandleGridStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	h.mu.RLock()
	stats := h.grid.Stats()
	h.mu.RUnlock()

	spatialhttp.OKResponse(w, http.StatusOK, stats)
}

type treeNode struct {
	Depth     int      `json:"depth"`
	MinX      float64  `json:"min_x"`
	MinY      float64  `json:"min_y"`
	MaxX      float64  `json:"max_x"`
	MaxY      float64  `json:"max_y"`
	EntityIDs []uint64 `json:"entity_ids,omitempty"`
}

// HandleTreeNodes dumps the node layout of the quadtree for visualization.
func (h *Handler) HandleTreeNodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.flags.IsSet(featureflag.FlagDisableTreeIntrospection) {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	h.mu.RLock()
	var nodes []treeNode
	it := h.tree.IterateNodes()
	for info, ok := it.Next(); ok; info, ok = it.Next() {
		minX, minY, maxX, maxY := info.Boundary.MinMax()
		n := treeNode{
			Depth: info.Depth,
			MinX:  minX,
			MinY:  minY,
			MaxX:  maxX,
			MaxY:  maxY,
		}
		for _, id := range info.Items {
			n.EntityIDs = append(n.EntityIDs, uint64(id))
		}
		nodes = append(nodes, n)
	}
	levels := h.tree.Levels()
	h.mu.RUnlock()

	spatialhttp.OKResponse(w, http.StatusOK, struct {
		Levels int        `json:"levels"`
		Nodes  []treeNode `json:"nodes"`
	}{Levels: levels, Nodes: nodes})
}

// HandleStats reports overall index statistics.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	h.mu.RLock()
	resp := struct {
		Entities   int            `json:"entities"`
		TreeLevels int            `json:"tree_levels"`
		Grid       hashgrid.Stats `json:"grid"`
	}{
		Entities:   h.tree.Len(),
		TreeLevels: h.tree.Levels(),
		Grid:       h.grid.Stats(),
	}
	h.mu.RUnlock()

	spatialhttp.OKResponse(w, http.StatusOK, resp)
}
