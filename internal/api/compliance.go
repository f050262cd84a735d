package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"dealos-proof/backend/internal/compliance"
)

const maxPlanBytes = 1 << 20

var (
	errEmptyBody    = errors.New("request body is empty")
	errNullPlan     = errors.New("activation plan must be a JSON object")
	errTrailingData = errors.New("unexpected data after activation plan")
)

// handleComplianceCheck classifies one activation plan. Any classifier outcome
// is a 200; only an undecodable body is an error.
func (s *Server) handleComplianceCheck(c *gin.Context) {
	if c.Request.Body == nil {
		s.renderError(c, http.StatusInternalServerError, errEmptyBody)
		return
	}
	req, err := decodePlan(http.MaxBytesReader(c.Writer, c.Request.Body, maxPlanBytes))
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, fmt.Errorf("decode activation plan: %w", err))
		return
	}

	result := s.checker.Check(c.Request.Context(), req)
	c.JSON(http.StatusOK, result.Verdict)
}

// decodePlan reads exactly one JSON object from body. Unknown fields are
// ignored; a null document or anything after the object is rejected.
func decodePlan(body io.Reader) (compliance.ActivationPlanRequest, error) {
	dec := json.NewDecoder(body)
	var req *compliance.ActivationPlanRequest
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return compliance.ActivationPlanRequest{}, errEmptyBody
		}
		return compliance.ActivationPlanRequest{}, err
	}
	if req == nil {
		return compliance.ActivationPlanRequest{}, errNullPlan
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return compliance.ActivationPlanRequest{}, errTrailingData
	}
	return *req, nil
}
