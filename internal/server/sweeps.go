package server

import "github.com/gin-gonic/gin"

// The sweep endpoints exist for operators and tests; the scheduler calls the
// same service methods on a timer. All three are idempotent.

func (s *Server) RunStatusSweep(c *gin.Context) {
	result, err := s.lifecycleSvc.RunStatusSweep(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, result)
}

func (s *Server) RunDailyReset(c *gin.Context) {
	result, err := s.lifecycleSvc.RunDailyReset(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, result)
}

func (s *Server) RunExpirySweep(c *gin.Context) {
	result, err := s.lifecycleSvc.RunExpirySweep(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, result)
}
