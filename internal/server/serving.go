package server

import (
	"strings"

	addomain "github.com/adlanelabs/adlane/internal/ad/domain"
	frauddomain "github.com/adlanelabs/adlane/internal/fraud/domain"
	rankingdomain "github.com/adlanelabs/adlane/internal/ranking/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) CanShow(c *gin.Context) {
	adID, ok := adIDParam(c)
	if !ok {
		return
	}

	decision, err := s.billingSvc.CanShow(c.Request.Context(), adID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, decision)
}

type viewRequest struct {
	Placement string `json:"placement"`
}

// LogAdView counts a render. The impression charge happens inside the ranking
// service; a charge rejection never fails the render.
func (s *Server) LogAdView(c *gin.Context) {
	adID, ok := adIDParam(c)
	if !ok {
		return
	}

	var req viewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, err)
		return
	}
	placement, ok := parsePlacement(c, req.Placement)
	if !ok {
		return
	}

	if err := s.rankingSvc.LogAdView(c.Request.Context(), adID, placement); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(200, gin.H{"status": "logged"})
}

type clickRequest struct {
	Placement string `json:"placement"`
	IP        string `json:"ip"`
	SessionID string `json:"session_id"`
}

// LogAdClick bills a redirect click. A fraud or cap rejection is reported in
// the result body, not as an HTTP error, so the redirect itself proceeds.
func (s *Server) LogAdClick(c *gin.Context) {
	adID, ok := adIDParam(c)
	if !ok {
		return
	}

	var req clickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, err)
		return
	}
	placement, ok := parsePlacement(c, req.Placement)
	if !ok {
		return
	}

	ip := strings.TrimSpace(req.IP)
	if ip == "" {
		ip = c.ClientIP()
	}

	result, err := s.rankingSvc.LogAdClick(c.Request.Context(), rankingdomain.ClickLogRequest{
		AdID:      adID,
		Placement: placement,
		IP:        ip,
		SessionID: strings.TrimSpace(req.SessionID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, result)
}

func (s *Server) CheckClickFraud(c *gin.Context) {
	adID, err := snowflakeQuery(c, "ad_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	ip := strings.TrimSpace(c.Query("ip"))
	if ip == "" {
		AbortWithError(c, newValidationError("ip", "required", "ip is required"))
		return
	}

	score, err := s.fraudSvc.Score(c.Request.Context(), frauddomain.ScoreRequest{
		AdID:      adID,
		IP:        ip,
		SessionID: strings.TrimSpace(c.Query("session_id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, score)
}

func parsePlacement(c *gin.Context, raw string) (addomain.PlacementType, bool) {
	switch addomain.PlacementType(strings.ToLower(strings.TrimSpace(raw))) {
	case addomain.PlacementBanner:
		return addomain.PlacementBanner, true
	case addomain.PlacementCategory:
		return addomain.PlacementCategory, true
	case addomain.PlacementSearch, "":
		return addomain.PlacementSearch, true
	}
	AbortWithError(c, newValidationError("placement", "invalid_placement", "placement must be banner, search, or category"))
	return "", false
}
