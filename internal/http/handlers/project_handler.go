package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-market/internal/dto"
	"github.com/ignatzorin/escrow-market/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-market/internal/ranking"
	"github.com/ignatzorin/escrow-market/internal/service"
)

type ProjectHandler struct {
	projects *service.ProjectService
}

func NewProjectHandler(projects *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// CreateProject POST /api/projects
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateProjectRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	project, err := h.projects.CreateProject(c.Request.Context(), userID, service.CreateProjectInput{
		Title:          req.Title,
		Description:    req.Description,
		Budget:         req.Budget,
		Skills:         req.Skills,
		MaxProposals:   req.MaxProposals,
		AutomationType: req.AutomationType,
		BotStage:       req.BotStage,
		Integrations:   req.Integrations,
		MainGoal:       req.MainGoal,
		DeadlineDays:   req.DeadlineDays,
		SupportNeeded:  req.SupportNeeded,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, project)
}

// GetProject GET /api/projects/:id
func (h *ProjectHandler) GetProject(c *gin.Context) {
	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	project, err := h.projects.GetProject(c.Request.Context(), projectID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, project)
}

// CreateProposal POST /api/projects/:id/proposals
func (h *ProjectHandler) CreateProposal(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.CreateProposalRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	proposal, err := h.projects.CreateProposal(c.Request.Context(), userID, projectID, service.CreateProposalInput{
		Content: req.Content,
		Price:   req.Price,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, proposal)
}

// ListProposals GET /api/projects/:id/proposals
func (h *ProjectHandler) ListProposals(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	proposals, err := h.projects.ListProjectProposals(c.Request.Context(), userID, projectID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, proposals)
}

// GetTopExecutors GET /api/projects/:id/top-executors?limit=5
func (h *ProjectHandler) GetTopExecutors(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	limit := common.ParseIntQuery(c, "limit", ranking.DefaultLimit)
	top, err := h.projects.GetTopExecutors(c.Request.Context(), userID, projectID, limit)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, top)
}

// ListInvites GET /api/projects/:id/invites
func (h *ProjectHandler) ListInvites(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	invites, err := h.projects.ListInvites(c.Request.Context(), userID, projectID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, invites)
}

// InviteFreelancer POST /api/projects/:id/invites
func (h *ProjectHandler) InviteFreelancer(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.InviteFreelancerRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.projects.InviteFreelancer(c.Request.Context(), userID, projectID, service.InviteInput{
		FreelancerID: req.FreelancerID,
		Message:      req.Message,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}
