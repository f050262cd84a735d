package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dealos-proof/backend/internal/store"
)

const (
	defaultPageSize = 25
	maxPageSize     = 200
	checksLimit     = 100
)

func (s *Server) handleCreateCampaign(c *gin.Context) {
	var req CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	campaign := req.Model()
	if campaign.Title == "" || campaign.Description == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("title and description are required"))
		return
	}
	if err := s.db.CreateCampaign(campaign); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, CampaignFromModel(*campaign))
}

func (s *Server) handleListCampaigns(c *gin.Context) {
	page := parsePositiveInt(c.Query("page"), 1)
	pageSize := parsePositiveInt(firstNonEmpty(c.Query("pageSize"), c.Query("page_size")), defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	rows, total, err := s.db.ListCampaigns(store.CampaignQuery{
		Status: c.Query("status"),
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	items := make([]CampaignDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, CampaignFromModel(row))
	}
	c.JSON(http.StatusOK, CampaignsResponse{Items: items, Total: total})
}

func (s *Server) handleGetCampaign(c *gin.Context) {
	campaign, ok := s.lookupCampaign(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, CampaignFromModel(*campaign))
}

func (s *Server) handleCheckCampaign(c *gin.Context) {
	campaign, ok := s.lookupCampaign(c)
	if !ok {
		return
	}

	check, _, err := s.checker.CheckCampaign(c.Request.Context(), s.db, campaign, true)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	s.notifier.Broadcast(CheckEvent{
		Type:             "check",
		CampaignID:       campaign.ID,
		CheckID:          check.ID,
		ComplianceStatus: check.ComplianceStatus,
		AIPowered:        check.AIPowered,
	})
	logrus.WithFields(logrus.Fields{
		"campaign_id": campaign.ID,
		"check_id":    check.ID,
		"status":      check.ComplianceStatus,
	}).Info("campaign compliance check recorded")

	c.JSON(http.StatusOK, CheckFromModel(*check))
}

func (s *Server) handleListChecks(c *gin.Context) {
	campaign, ok := s.lookupCampaign(c)
	if !ok {
		return
	}
	rows, err := s.db.ListChecks(campaign.ID, checksLimit)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	items := make([]CheckDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, CheckFromModel(row))
	}
	c.JSON(http.StatusOK, ChecksResponse{Items: items})
}

// lookupCampaign resolves the :id param, rendering 400/404/500 itself.
func (s *Server) lookupCampaign(c *gin.Context) (*store.Campaign, bool) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return nil, false
	}
	campaign, err := s.db.GetCampaign(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.renderError(c, http.StatusNotFound, errors.New("campaign not found"))
			return nil, false
		}
		s.renderError(c, http.StatusInternalServerError, err)
		return nil, false
	}
	return campaign, true
}
