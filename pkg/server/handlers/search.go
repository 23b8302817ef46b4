package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/chinchliff/oti"
	"github.com/chinchliff/oti/pkg/server/dto"
	"github.com/chinchliff/oti/pkg/types"
	"github.com/gin-gonic/gin"
)

// SearchHandler handles study, tree and tree node searches
type SearchHandler struct {
	runner oti.QueryRunner
	logger *slog.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(runner oti.QueryRunner, logger *slog.Logger) *SearchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchHandler{
		runner: runner,
		logger: logger,
	}
}

// FindStudies handles POST /v1/studies/find_studies
func (h *SearchHandler) FindStudies(c *gin.Context) {
	pred, ok := h.bind(c, types.StudyClass)
	if !ok {
		return
	}

	studies, err := h.runner.SearchStudies(c.Request.Context(), pred)
	if err != nil {
		h.writeSearchError(c, types.StudyClass, err)
		return
	}

	c.JSON(http.StatusOK, dto.StudySearchResponse{
		MatchedStudies: studies,
		Total:          len(studies),
	})
}

// FindTrees handles POST /v1/studies/find_trees
func (h *SearchHandler) FindTrees(c *gin.Context) {
	pred, ok := h.bind(c, types.TreeClass)
	if !ok {
		return
	}

	trees, err := h.runner.SearchTrees(c.Request.Context(), pred)
	if err != nil {
		h.writeSearchError(c, types.TreeClass, err)
		return
	}

	c.JSON(http.StatusOK, dto.TreeSearchResponse{
		MatchedTrees: trees,
		Total:        len(trees),
	})
}

// FindTreeNodes handles POST /v1/studies/find_tree_nodes
func (h *SearchHandler) FindTreeNodes(c *gin.Context) {
	pred, ok := h.bind(c, types.TreeNodeClass)
	if !ok {
		return
	}

	trees, err := h.runner.SearchTreeNodes(c.Request.Context(), pred)
	if err != nil {
		h.writeSearchError(c, types.TreeNodeClass, err)
		return
	}

	c.JSON(http.StatusOK, dto.TreeNodeSearchResponse{
		MatchedTrees: trees,
		Total:        len(trees),
	})
}

// Properties handles GET /v1/studies/properties
func (h *SearchHandler) Properties(c *gin.Context) {
	props := make(map[types.EntityClass][]types.SearchableProperty, len(types.EntityClasses))
	for _, class := range types.EntityClasses {
		props[class] = h.runner.Properties(class)
	}
	c.JSON(http.StatusOK, dto.PropertiesResponse{Properties: props})
}

// bind decodes and validates the request body. It writes the error
// response itself and reports false when the request is rejected.
func (h *SearchHandler) bind(c *gin.Context, class types.EntityClass) (types.SearchPredicate, bool) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return types.SearchPredicate{}, false
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return types.SearchPredicate{}, false
	}
	return req.Predicate(class), true
}

func (h *SearchHandler) writeSearchError(c *gin.Context, class types.EntityClass, err error) {
	status, code := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request.Context(), "search failed",
			"class", class,
			"status", status,
			"error", err)
	}
	writeError(c, status, code, err.Error())
}

// StatusFor maps a search error to an HTTP status and error code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, types.ErrInvalidPredicate):
		return http.StatusBadRequest, "invalid_predicate"
	case errors.Is(err, types.ErrIndexUnavailable):
		return http.StatusServiceUnavailable, "index_unavailable"
	case errors.Is(err, types.ErrMissingProperty):
		return http.StatusInternalServerError, "missing_property"
	case errors.Is(err, types.ErrRootResolution):
		return http.StatusInternalServerError, "root_resolution"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError writes an error response as JSON
func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{
		Error:   code,
		Message: message,
		Code:    status,
	})
}
