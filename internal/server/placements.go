package server

import (
	"strconv"
	"strings"

	addomain "github.com/adlanelabs/adlane/internal/ad/domain"
	rankingdomain "github.com/adlanelabs/adlane/internal/ranking/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func snowflakeQuery(c *gin.Context, name string) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, newValidationError(name, "required", name+" is required")
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, newValidationError(name, "invalid_id", name+" must be a snowflake id")
	}
	return id, nil
}

func (s *Server) placementRequest(c *gin.Context, placement addomain.PlacementType, keyword, categoryID string, limit int) (rankingdomain.PlacementRequest, error) {
	req := rankingdomain.PlacementRequest{
		Placement: placement,
		Keyword:   strings.TrimSpace(keyword),
		Limit:     limit,
	}
	switch placement {
	case addomain.PlacementCategory:
		id, err := snowflake.ParseString(strings.TrimSpace(categoryID))
		if err != nil {
			return req, newValidationError("category_id", "invalid_id", "category_id must be a snowflake id")
		}
		req.CategoryID = id
	default:
		if req.Keyword == "" {
			return req, newValidationError("keyword", "required", "keyword is required for search placements")
		}
	}
	return req, nil
}

func (s *Server) GetSponsoredCandidates(c *gin.Context) {
	placement, ok := parsePlacement(c, c.Query("placement"))
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	req, err := s.placementRequest(c, placement, c.Query("keyword"), c.Query("category_id"), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	candidates, err := s.rankingSvc.GetSponsoredCandidates(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if candidates == nil {
		candidates = []rankingdomain.Candidate{}
	}
	respondData(c, candidates)
}

type placementResultsRequest struct {
	Placement  string                     `json:"placement"`
	Keyword    string                     `json:"keyword"`
	CategoryID string                     `json:"category_id"`
	Limit      int                        `json:"limit"`
	Organic    []rankingdomain.ResultItem `json:"organic"`
}

// BuildPlacementResults is the one-shot serving call: rank candidates for the
// placement and interleave them into the caller's organic list.
func (s *Server) BuildPlacementResults(c *gin.Context) {
	var body placementResultsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, err)
		return
	}

	placement, ok := parsePlacement(c, body.Placement)
	if !ok {
		return
	}
	req, err := s.placementRequest(c, placement, body.Keyword, body.CategoryID, body.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	candidates, err := s.rankingSvc.GetSponsoredCandidates(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	results := s.rankingSvc.InsertSponsored(body.Organic, candidates, placement)
	respondData(c, results)
}
