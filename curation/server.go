// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package curation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jcodagnone/gazetteer/gazetteer"
	"github.com/jcodagnone/gazetteer/geocode"
)

// FeatureSource fetches geocoder features so reviewers can inspect a guess.
type FeatureSource interface {
	Feature(ctx context.Context, identifier string) (*geocode.Feature, error)
}

// Server exposes the review workflow as a JSON API.
type Server struct {
	repo     Repository
	features FeatureSource
}

// NewServer returns a server over repo. features may be nil, in which case
// feature details are not available.
func NewServer(repo Repository, features FeatureSource) *Server {
	if features == nil {
		log.Println("No feature source configured; feature details are disabled")
	}

	return &Server{repo: repo, features: features}
}

// Handler returns the routes of the review API.
func (s *Server) Handler() http.Handler {
	r := gin.Default()
	s.register(r)

	return r
}

func (s *Server) register(r gin.IRouter) {
	api := r.Group("/api")
	api.GET("/datasets", s.listDatasets)
	api.GET("/datasets/:id", s.getDataset)
	api.GET("/datasets/:id/export", s.exportDataset)
	api.GET("/datasets/:id/queue", s.getQueue)
	api.GET("/datasets/:id/progress", s.getProgress)
	api.GET("/datasets/:id/reviews", s.listReviews)
	api.GET("/datasets/:id/clusters", s.getClusters)
	api.POST("/datasets/:id/records/:index/review", s.review)
	api.GET("/features/:identifier", s.getFeature)
}

// Run serves the API on addr until it fails.
func (s *Server) Run(addr string) error {
	log.Printf("Serving review API on http://%s/api/datasets", addr)

	return http.ListenAndServe(addr, s.Handler())
}

// abortWithError maps repository errors to HTTP statuses.
func abortWithError(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, ErrDatasetNotFound), errors.Is(err, ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrNoGuess):
		status = http.StatusConflict
	}

	ctx.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) listDatasets(ctx *gin.Context) {
	datasets, err := s.repo.ListDatasets()
	if err != nil {
		abortWithError(ctx, err)

		return
	}

	if datasets == nil {
		datasets = []*Dataset{}
	}

	ctx.JSON(http.StatusOK, datasets)
}

func (s *Server) getDataset(ctx *gin.Context) {
	ds, err := s.repo.GetDataset(ctx.Param("id"))
	if err != nil {
		abortWithError(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, ds)
}

func (s *Server) exportDataset(ctx *gin.Context) {
	c, err := s.repo.LoadCollection(ctx.Param("id"))
	if err != nil {
		abortWithError(ctx, err)

		return
	}

	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", c.Name+".csv"))
	ctx.Header("Content-Type", "text/csv; charset=utf-8")
	ctx.Status(http.StatusOK)

	if err := gazetteer.Write(ctx.Writer, c); err != nil {
		log.Printf("Error exporting dataset %s: %v", ctx.Param("id"), err)
	}
}

// intQuery parses an optional non-negative integer query parameter.
func intQuery(ctx *gin.Context, name string) (int, bool) {
	v := ctx.Query(name)
	if v == "" {
		return 0, true
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s parameter", name)})

		return 0, false
	}

	return n, true
}

func (s *Server) getQueue(ctx *gin.Context) {
	limit, ok := intQuery(ctx, "limit")
	if !ok {
		return
	}

	offset, ok := intQuery(ctx, "offset")
	if !ok {
		return
	}

	items, err := s.repo.ReviewQueue(ctx.Param("id"), limit, offset)
	if err != nil {
		abortWithError(ctx, err)

		return
	}

	if items == nil {
		items = []*ReviewItem{}
	}

	ctx.JSON(http.StatusOK, items)
}

func (s *Server) getProgress(ctx *gin.Context) {
	p, err := s.repo.Progress(ctx.Param("id"))
	if err != nil {
		abortWithError(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, p)
}

func (s *Server) listReviews(ctx *gin.Context) {
	reviews, err := s.repo.ListReviews(ctx.Param("id"))
	if err != nil {
		abortWithError(ctx, err)

		return
	}

	if reviews == nil {
		reviews = []*Review{}
	}

	ctx.JSON(http.StatusOK, reviews)
}

func (s *Server) getClusters(ctx *gin.Context) {
	radius := DefaultClusterRadiusKm

	if v := ctx.Query("radius_km"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid radius_km parameter"})

			return
		}

		radius = f
	}

	clusters, err := s.repo.NearDuplicates(ctx.Param("id"), radius)
	if err != nil {
		abortWithError(ctx, err)

		return
	}

	if clusters == nil {
		clusters = []*Cluster{}
	}

	ctx.JSON(http.StatusOK, clusters)
}

// ReviewRequest is the body of a review decision.
type ReviewRequest struct {
	Tier     int    `json:"tier"`
	Decision string `json:"decision"`
	Reviewer string `json:"reviewer"`
	Notes    string `json:"notes"`
}

func (s *Server) review(ctx *gin.Context) {
	index, err := strconv.Atoi(ctx.Param("index"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid record index"})

		return
	}

	var req ReviewRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	rv := &Review{
		DatasetID: ctx.Param("id"),
		Index:     index,
		Tier:      req.Tier,
		Decision:  req.Decision,
		Reviewer:  sanitizeText(req.Reviewer, maxReviewerLen),
		Notes:     sanitizeText(req.Notes, maxNotesLen),
	}

	if err := validateReview(rv); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("validation failed: %v", err)})

		return
	}

	rec, err := s.repo.Decide(rv)
	if err != nil {
		abortWithError(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"review": rv, "record": rec})
}

func (s *Server) getFeature(ctx *gin.Context) {
	if s.features == nil {
		ctx.JSON(http.StatusNotImplemented, gin.H{"error": "no feature source configured"})

		return
	}

	f, err := s.features.Feature(ctx.Request.Context(), ctx.Param("identifier"))
	if err != nil {
		status := http.StatusBadGateway
		if geocode.IsRateLimitError(err) {
			status = http.StatusTooManyRequests
		}

		ctx.JSON(status, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, f)
}
