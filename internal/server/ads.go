package server

import (
	"net/http"
	"strconv"
	"strings"

	adeventsdomain "github.com/adlanelabs/adlane/internal/adevents/domain"
	frauddomain "github.com/adlanelabs/adlane/internal/fraud/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func adIDParam(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "ad id must be a snowflake id"))
		return 0, false
	}
	return id, true
}

func (s *Server) ValidateAd(c *gin.Context) {
	adID, ok := adIDParam(c)
	if !ok {
		return
	}

	result, err := s.activationSvc.Validate(c.Request.Context(), adID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, result)
}

func (s *Server) ActivateAd(c *gin.Context) {
	adID, ok := adIDParam(c)
	if !ok {
		return
	}

	result, err := s.activationSvc.Activate(c.Request.Context(), adID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, result)
}

func (s *Server) ResumeAd(c *gin.Context) {
	adID, ok := adIDParam(c)
	if !ok {
		return
	}

	result, err := s.billingSvc.Resume(c.Request.Context(), adID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, result)
}

func (s *Server) MarkUpfrontPaid(c *gin.Context) {
	adID, ok := adIDParam(c)
	if !ok {
		return
	}

	if err := s.activationSvc.MarkUpfrontPaid(c.Request.Context(), adID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "upfront_paid"})
}

type suspendRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) SuspendAd(c *gin.Context) {
	adID, ok := adIDParam(c)
	if !ok {
		return
	}

	var req suspendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, err)
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = frauddomain.IndicatorClickStorm
	}

	if err := s.fraudSvc.AutoSuspend(c.Request.Context(), adID, reason); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "suspended"})
}

func (s *Server) ListAdEvents(c *gin.Context) {
	adID, ok := adIDParam(c)
	if !ok {
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	events, err := s.eventsSvc.ListByAd(c.Request.Context(), adID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if events == nil {
		events = []adeventsdomain.AdEvent{}
	}
	respondData(c, events)
}
