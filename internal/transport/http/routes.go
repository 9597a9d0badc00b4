// Package http is the thin Gin collaborator in front of solverapi.Solver:
// build-from-spec, nthSolution, countSolutions, validateLayout, nthStep,
// and progress polling, plus read-only views over the built-in example
// and classic catalogues. Solver instances live in an in-memory registry
// keyed by uuid.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sudokusolver/internal/kernel/selector"
	"sudokusolver/internal/library"
	"sudokusolver/internal/puzzles"
	"sudokusolver/internal/solverapi"
	"sudokusolver/pkg/config"
)

var cfg *config.Config

// requestSearchTimeout bounds how long any single search-driving endpoint
// may run before its context is canceled.
const requestSearchTimeout = 30 * time.Second

// registry holds every Solver built by this process, keyed by the id
// handed back from /api/solve/build. A *solverapi.Solver is not safe for
// concurrent search calls against the same instance (the kernel itself
// is single-threaded), so callers must serialize requests against
// one id themselves; the registry only protects the map.
var registry = struct {
	sync.RWMutex
	solvers map[string]*solverapi.Solver
}{solvers: make(map[string]*solverapi.Solver)}

// RegisterRoutes wires every route this service exposes onto r.
func RegisterRoutes(r *gin.Engine, c *config.Config) {
	cfg = c

	r.GET("/health", healthHandler)

	api := r.Group("/api")
	{
		api.GET("/examples", examplesListHandler)
		api.GET("/examples/:id", exampleGetHandler)

		api.GET("/classic/daily/:difficulty", classicDailyHandler)
		api.GET("/classic/seed/:seed/:difficulty", classicSeedHandler)

		api.POST("/solve/build", buildHandler)
		api.GET("/solve/:id/state", stateHandler)
		api.POST("/solve/:id/nth-solution", nthSolutionHandler)
		api.POST("/solve/:id/count-solutions", countSolutionsHandler)
		api.POST("/solve/:id/estimated-count-solutions", estimatedCountHandler)
		api.POST("/solve/:id/all-possibilities", solveAllPossibilitiesHandler)
		api.POST("/solve/:id/validate-layout", validateLayoutHandler)
		api.POST("/solve/:id/step", stepHandler)
		api.POST("/solve/:id/terminate", terminateHandler)
	}
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func examplesListHandler(c *gin.Context) {
	entries := library.All()
	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, gin.H{"id": e.ID, "name": e.Name})
	}
	c.JSON(http.StatusOK, gin.H{"examples": out})
}

func exampleGetHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	entry, ok := library.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown example"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": entry.ID, "name": entry.Name, "spec": entry.Spec})
}

// classicSpec renders a classic-catalogue entry's givens as a
// ConstraintSpec a client can hand straight back to /api/solve/build.
func classicSpec(givens []int) solverapi.ConstraintSpec {
	return solverapi.ConstraintSpec{ShapeTag: "9x9", Givens: puzzles.GivensMap(givens)}
}

func classicDailyHandler(c *gin.Context) {
	loader := puzzles.Global()
	if loader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "classic catalogue not loaded"})
		return
	}
	givens, _, idx, err := loader.GetTodayPuzzle(c.Param("difficulty"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"puzzleIndex": idx, "spec": classicSpec(givens)})
}

func classicSeedHandler(c *gin.Context) {
	loader := puzzles.Global()
	if loader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "classic catalogue not loaded"})
		return
	}
	givens, _, idx, err := loader.GetPuzzleBySeed(c.Param("seed"), c.Param("difficulty"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"puzzleIndex": idx, "spec": classicSpec(givens)})
}

// BuildRequest is the wire body for POST /api/solve/build: either an
// inline spec or the uuid of a cataloged example (exampleId takes
// priority when both are present).
type BuildRequest struct {
	ExampleID string                   `json:"exampleId,omitempty"`
	Spec      solverapi.ConstraintSpec `json:"spec,omitempty"`
}

func buildHandler(c *gin.Context) {
	var req BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	spec := req.Spec
	if req.ExampleID != "" {
		id, err := uuid.Parse(req.ExampleID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exampleId"})
			return
		}
		entry, ok := library.Get(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown exampleId"})
			return
		}
		spec = entry.Spec
	}
	if spec.ShapeTag == "" {
		spec.ShapeTag = cfg.DefaultShapeTag
	}

	solver, err := solverapi.Build(spec, solverapi.DebugOptions{})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	solver.SetMaxGuesses(cfg.MaxSearchIterations)

	id := uuid.New().String()
	registry.Lock()
	registry.solvers[id] = solver
	registry.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"id":       id,
		"feasible": solver.Feasible(),
	})
}

func lookupSolver(c *gin.Context) (*solverapi.Solver, bool) {
	id := c.Param("id")
	registry.RLock()
	s, ok := registry.solvers[id]
	registry.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown solve id"})
		return nil, false
	}
	return s, true
}

// requestContext bounds a single HTTP-driven search so a pathological
// spec can't hang a request forever; the engine itself checks ctx.Done()
// between guesses.
func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestSearchTimeout)
}

func stateHandler(c *gin.Context) {
	s, ok := lookupSolver(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.State())
}

func nthSolutionHandler(c *gin.Context) {
	s, ok := lookupSolver(c)
	if !ok {
		return
	}
	var req struct {
		N int `json:"n" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := requestContext()
	defer cancel()
	layout, found := s.NthSolution(ctx, req.N)
	if !found {
		c.JSON(http.StatusOK, gin.H{"found": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"found": true, "layout": layout})
}

func countSolutionsHandler(c *gin.Context) {
	s, ok := lookupSolver(c)
	if !ok {
		return
	}
	var req struct {
		Limit int `json:"limit"`
	}
	_ = c.ShouldBindJSON(&req)
	ctx, cancel := requestContext()
	defer cancel()
	count := s.CountSolutions(ctx, req.Limit)
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func validateLayoutHandler(c *gin.Context) {
	s, ok := lookupSolver(c)
	if !ok {
		return
	}
	var req struct {
		Layout solverapi.Layout `json:"layout,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Layout) > 0 {
		c.JSON(http.StatusOK, gin.H{"valid": s.CheckLayout(req.Layout)})
		return
	}
	ctx, cancel := requestContext()
	defer cancel()
	layout, ok := s.ValidateLayout(ctx)
	c.JSON(http.StatusOK, gin.H{"valid": ok, "layout": layout})
}

func stepHandler(c *gin.Context) {
	s, ok := lookupSolver(c)
	if !ok {
		return
	}
	var req struct {
		N      int                        `json:"n"`
		Guides map[int]selector.StepGuide `json:"guides,omitempty"`
	}
	_ = c.ShouldBindJSON(&req)
	ctx, cancel := requestContext()
	defer cancel()
	result, ok := s.NthStep(ctx, req.N, req.Guides)
	c.JSON(http.StatusOK, gin.H{"found": ok, "step": result})
}

func estimatedCountHandler(c *gin.Context) {
	s, ok := lookupSolver(c)
	if !ok {
		return
	}
	var req struct {
		Samples int `json:"samples"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Samples <= 0 {
		req.Samples = 256
	}
	ctx, cancel := requestContext()
	defer cancel()
	c.JSON(http.StatusOK, s.EstimatedCountSolutions(ctx, req.Samples))
}

func solveAllPossibilitiesHandler(c *gin.Context) {
	s, ok := lookupSolver(c)
	if !ok {
		return
	}
	var req struct {
		Threshold int `json:"threshold"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Threshold <= 0 {
		req.Threshold = 1
	}
	ctx, cancel := requestContext()
	defer cancel()
	c.JSON(http.StatusOK, s.SolveAllPossibilities(ctx, req.Threshold))
}

func terminateHandler(c *gin.Context) {
	s, ok := lookupSolver(c)
	if !ok {
		return
	}
	s.Terminate()
	c.JSON(http.StatusOK, gin.H{"terminated": true})
}
