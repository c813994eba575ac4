package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"

	"github.com/SyedAnees21/spatial/featureflag"
)

func newTestOptions() Options {
	return Options{
		MinX: -500, MinY: -500,
		MaxX: 500, MaxY: 500,
		MinZ: 0, MaxZ: 0,
		TreeCapacity: 4,
		GridCellsX:   100,
		GridCellsY:   100,
		GridFloors:   1,
	}
}

func newTestServer(t *testing.T, opts Options) (*Handler, *httptest.Server) {
	t.Helper()

	h, err := New(opts)
	require.NoError(t, err)

	srv := httptest.NewServer(h.Mux())
	t.Cleanup(srv.Close)
	return h, srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	res, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return res
}

func decodeBody[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	defer res.Body.Close()

	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

func TestHandlerNew(t *testing.T) {
	t.Run("valid options", func(t *testing.T) {
		_, err := New(newTestOptions())
		require.NoError(t, err)
	})

	t.Run("bad tree capacity", func(t *testing.T) {
		opts := newTestOptions()
		opts.TreeCapacity = 0
		_, err := New(opts)
		require.Error(t, err)
	})

	t.Run("degenerate boundary", func(t *testing.T) {
		opts := newTestOptions()
		opts.MaxX = opts.MinX
		_, err := New(opts)
		require.Error(t, err)
	})
}

func TestHandleEntities(t *testing.T) {
	_, srv := newTestServer(t, newTestOptions())

	t.Run("insert accepts in-bounds and reports rejects", func(t *testing.T) {
		res := postJSON(t, srv.URL+"/entities", []Entity{
			{EntityID: 1, X: 10, Y: 10, Width: 2, Height: 2},
			{EntityID: 2, X: -100, Y: 250, Width: 4, Height: 4},
			{EntityID: 3, X: 9000, Y: 0, Width: 1, Height: 1},
		})
		require.Equal(t, http.StatusOK, res.StatusCode)

		body := decodeBody[insertResponse](t, res)
		require.Equal(t, 2, body.Inserted)
		require.Equal(t, []uint64{3}, body.Rejected)
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		res, err := http.Post(srv.URL+"/entities", "application/json", bytes.NewReader([]byte("{")))
		require.NoError(t, err)
		res.Body.Close()
		require.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("delete clears both indexes", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodDelete, srv.URL+"/entities", nil)
		require.NoError(t, err)

		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)

		body := decodeBody[struct {
			Removed int `json:"removed"`
		}](t, res)
		require.Equal(t, 2, body.Removed)
	})

	t.Run("unsupported method", func(t *testing.T) {
		res, err := http.Get(srv.URL + "/entities")
		require.NoError(t, err)
		res.Body.Close()
		require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
	})
}

func TestHandleTreeQuery(t *testing.T) {
	h, srv := newTestServer(t, newTestOptions())

	inserted, rejected := h.Insert(
		Entity{EntityID: 1, X: 10, Y: 10, Width: 2, Height: 2},
		Entity{EntityID: 2, X: 200, Y: 200, Width: 10, Height: 10},
	)
	require.Equal(t, 2, inserted)
	require.Empty(t, rejected)

	type queryResponse struct {
		Entities []Entity `json:"entities"`
	}

	t.Run("point query", func(t *testing.T) {
		res := postJSON(t, srv.URL+"/query", treeQueryRequest{Shape: "point", X: 10, Y: 10})
		body := decodeBody[queryResponse](t, res)
		require.Len(t, body.Entities, 1)
		require.Equal(t, uint64(1), body.Entities[0].EntityID)
	})

	t.Run("rect query", func(t *testing.T) {
		res := postJSON(t, srv.URL+"/query", treeQueryRequest{Shape: "rect", X: 100, Y: 100, Width: 250, Height: 250})
		body := decodeBody[queryResponse](t, res)
		require.Len(t, body.Entities, 2)
	})

	t.Run("circle query", func(t *testing.T) {
		res := postJSON(t, srv.URL+"/query", treeQueryRequest{Shape: "circle", X: 200, Y: 200, Radius: 20})
		body := decodeBody[queryResponse](t, res)
		require.Len(t, body.Entities, 1)
		require.Equal(t, uint64(2), body.Entities[0].EntityID)
	})

	t.Run("unknown shape", func(t *testing.T) {
		res := postJSON(t, srv.URL+"/query", treeQueryRequest{Shape: "triangle"})
		res.Body.Close()
		require.Equal(t, http.StatusBadRequest, res.StatusCode)
	})
}

func TestHandlerReinsertMoves(t *testing.T) {
	h, srv := newTestServer(t, newTestOptions())

	inserted, rejected := h.Insert(Entity{EntityID: 1, X: 10, Y: 10, Width: 2, Height: 2})
	require.Equal(t, 1, inserted)
	require.Empty(t, rejected)

	// A position update arrives as another insert under the same id. Both
	// indexes must end up holding the entity exactly once, at the new spot.
	inserted, rejected = h.Insert(Entity{EntityID: 1, X: 200, Y: 200, Width: 2, Height: 2})
	require.Equal(t, 1, inserted)
	require.Empty(t, rejected)
	require.Equal(t, 1, h.Len())

	type queryResponse struct {
		Entities []Entity `json:"entities"`
	}

	res := postJSON(t, srv.URL+"/query", treeQueryRequest{Shape: "rect", X: 0, Y: 0, Width: 1000, Height: 1000})
	body := decodeBody[queryResponse](t, res)
	require.Len(t, body.Entities, 1)
	require.Equal(t, 200.0, body.Entities[0].X)

	res = postJSON(t, srv.URL+"/query", treeQueryRequest{Shape: "point", X: 10, Y: 10})
	body = decodeBody[queryResponse](t, res)
	require.Empty(t, body.Entities)

	res = postJSON(t, srv.URL+"/grid/query", gridQueryRequest{Kind: "single", X: 10, Y: 10})
	grid := decodeBody[gridQueryResponse](t, res)
	require.Empty(t, grid.Entities)
}

func TestHandleGridQuery(t *testing.T) {
	h, srv := newTestServer(t, newTestOptions())

	h.Insert(
		Entity{EntityID: 1, X: 5, Y: 5},
		Entity{EntityID: 2, X: 7, Y: 3},
		Entity{EntityID: 3, X: 400, Y: -400},
	)

	t.Run("single", func(t *testing.T) {
		res := postJSON(t, srv.URL+"/grid/query", gridQueryRequest{Kind: "single", X: 5, Y: 5})
		body := decodeBody[gridQueryResponse](t, res)
		require.Len(t, body.Cells, 1)
		require.Len(t, body.Entities, 2)
	})

	t.Run("neighbour", func(t *testing.T) {
		res := postJSON(t, srv.URL+"/grid/query", gridQueryRequest{Kind: "neighbour", X: 5, Y: 5, Radius: 1})
		body := decodeBody[gridQueryResponse](t, res)
		require.Len(t, body.Entities, 3)
	})

	t.Run("search", func(t *testing.T) {
		res := postJSON(t, srv.URL+"/grid/query", gridQueryRequest{Kind: "search", TargetID: 3, X: 0, Y: 0, Radius: 1})
		body := decodeBody[gridQueryResponse](t, res)
		require.Len(t, body.Entities, 1)
		require.Equal(t, uint64(3), body.Entities[0].EntityID)
	})

	t.Run("unknown kind", func(t *testing.T) {
		res := postJSON(t, srv.URL+"/grid/query", gridQueryRequest{Kind: "everything"})
		res.Body.Close()
		require.Equal(t, http.StatusBadRequest, res.StatusCode)
	})
}

func TestHandleTreeNodes(t *testing.T) {
	t.Run("dumps the node layout", func(t *testing.T) {
		h, srv := newTestServer(t, newTestOptions())

		h.Insert(
			Entity{EntityID: 1, X: 100, Y: 100, Width: 2, Height: 2},
			Entity{EntityID: 2, X: -100, Y: -100, Width: 2, Height: 2},
		)

		res, err := http.Get(srv.URL + "/tree/nodes")
		require.NoError(t, err)

		body := decodeBody[struct {
			Levels int        `json:"levels"`
			Nodes  []treeNode `json:"nodes"`
		}](t, res)
		require.Equal(t, 1, body.Levels)
		require.Len(t, body.Nodes, 1)

		stored := 0
		for _, n := range body.Nodes {
			stored += len(n.EntityIDs)
		}
		require.Equal(t, 2, stored)
	})

	t.Run("introspection can be flagged off", func(t *testing.T) {
		opts := newTestOptions()
		opts.Flags = featureflag.New([]string{string(featureflag.FlagDisableTreeIntrospection)})
		_, srv := newTestServer(t, opts)

		res, err := http.Get(srv.URL + "/tree/nodes")
		require.NoError(t, err)
		res.Body.Close()
		require.Equal(t, http.StatusNotFound, res.StatusCode)
	})
}

func TestHandleStats(t *testing.T) {
	h, srv := newTestServer(t, newTestOptions())

	h.Insert(
		Entity{EntityID: 1, X: 5, Y: 5},
		Entity{EntityID: 2, X: -5, Y: -5},
	)

	res, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)

	body := decodeBody[struct {
		Entities   int `json:"entities"`
		TreeLevels int `json:"tree_levels"`
		Grid       struct {
			Entities int `json:"entities"`
			Floors   int `json:"floors"`
		} `json:"grid"`
	}](t, res)

	require.Equal(t, 2, body.Entities)
	require.Equal(t, 1, body.TreeLevels)
	require.Equal(t, 2, body.Grid.Entities)
	require.Equal(t, 1, body.Grid.Floors)
}
