package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/JustinAIDistuptors/instabids-agent-platform/agent"
	"github.com/JustinAIDistuptors/instabids-agent-platform/middleware"
	"github.com/JustinAIDistuptors/instabids-agent-platform/model"
	"github.com/JustinAIDistuptors/instabids-agent-platform/pkg/logger"
	"github.com/JustinAIDistuptors/instabids-agent-platform/repo"
	"github.com/JustinAIDistuptors/instabids-agent-platform/service"
	"github.com/JustinAIDistuptors/instabids-agent-platform/workflow"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxPhotoSize caps a single uploaded project photo at 20MB
const maxPhotoSize = 20 << 20

type ProjectHandler struct {
	projects    repo.ProjectRepo
	bidcards    repo.BidCardRepo
	invitations repo.InvitationRepo
	pipeline    *agent.Pipeline
	composer    *workflow.Composer
	images      *service.ImageService
}

func NewProjectHandler(projects repo.ProjectRepo, bidcards repo.BidCardRepo, invitations repo.InvitationRepo, pipeline *agent.Pipeline, composer *workflow.Composer, images *service.ImageService) *ProjectHandler {
	return &ProjectHandler{
		projects:    projects,
		bidcards:    bidcards,
		invitations: invitations,
		pipeline:    pipeline,
		composer:    composer,
		images:      images,
	}
}

type CreateProjectRequest struct {
	Description string `form:"description" json:"description" binding:"required"`
	LocationZip string `form:"location_zip" json:"location_zip"`
}

type CreateProjectResponse struct {
	ProjectID  string `json:"project_id"`
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
}

// Create accepts a homeowner's project description plus optional photos,
// persists the draft project and kicks off the intake workflow.
func (h *ProjectHandler) Create(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Description is required"})
		return
	}

	ownerID := middleware.GetOwnerID(c)
	log := logger.WithContext(c.Request.Context())

	project := &model.Project{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Description: req.Description,
		LocationZip: req.LocationZip,
		Status:      model.ProjectDraft,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	// Photos are optional and only handled on multipart requests
	if form, err := c.MultipartForm(); err == nil && form != nil {
		for _, file := range form.File["photos"] {
			if file.Size > maxPhotoSize {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Photo exceeds size limit"})
				return
			}
			if h.images == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Photo storage is not configured"})
				return
			}
			src, err := file.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read photo"})
				return
			}
			ref, err := h.images.UploadProjectPhoto(c.Request.Context(), ownerID, project.ID, file.Filename, src, file.Size, file.Header.Get("Content-Type"))
			src.Close()
			if err != nil {
				log.Error("photo upload failed", "error", err, "project_id", project.ID)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store photo"})
				return
			}
			project.ImageRefs = append(project.ImageRefs, ref)
		}
	}

	if err := h.projects.Create(c.Request.Context(), project); err != nil {
		log.Error("project create failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}

	inst := h.pipeline.Start(model.ProjectCreatedPayload{
		ProjectID:   project.ID,
		OwnerID:     project.OwnerID,
		Description: project.Description,
		LocationZip: project.LocationZip,
		ImageRefs:   project.ImageRefs,
	})

	log.Info("project submitted",
		"project_id", project.ID,
		"workflow_id", inst.ID,
		"owner_id", ownerID,
	)

	c.JSON(http.StatusAccepted, CreateProjectResponse{
		ProjectID:  project.ID,
		WorkflowID: inst.ID,
		Status:     project.Status,
	})
}

// Get returns a single project owned by the caller
func (h *ProjectHandler) Get(c *gin.Context) {
	project, ok := h.ownedProject(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, project)
}

// List returns all projects owned by the caller
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projects.ListByOwner(c.Request.Context(), middleware.GetOwnerID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list projects"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects, "count": len(projects)})
}

type StatusResponse struct {
	ProjectID      string                 `json:"project_id"`
	ProjectStatus  string                 `json:"project_status"`
	WorkflowID     string                 `json:"workflow_id,omitempty"`
	WorkflowStatus string                 `json:"workflow_status,omitempty"`
	Stages         []workflow.StageResult `json:"stages,omitempty"`
	BidCardStatus  string                 `json:"bid_card_status,omitempty"`
	ErrorMsg       string                 `json:"error_msg,omitempty"`
}

// Status mirrors the pipeline's progress for polling clients
func (h *ProjectHandler) Status(c *gin.Context) {
	project, ok := h.ownedProject(c)
	if !ok {
		return
	}

	resp := StatusResponse{
		ProjectID:     project.ID,
		ProjectStatus: project.Status,
		ErrorMsg:      project.ErrorMsg,
	}

	if inst := h.composer.InstanceForProject(project.ID); inst != nil {
		resp.WorkflowID = inst.ID
		resp.WorkflowStatus = string(inst.Status())
		resp.Stages = inst.StageResults()
	}

	if card, err := h.bidcards.GetByProject(c.Request.Context(), project.ID); err == nil {
		resp.BidCardStatus = card.Status
	}

	c.JSON(http.StatusOK, resp)
}

// Invitations lists the caller's invitations for one project
func (h *ProjectHandler) Invitations(c *gin.Context) {
	project, ok := h.ownedProject(c)
	if !ok {
		return
	}

	invitations, err := h.invitations.ListByProject(c.Request.Context(), project.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list invitations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitations": invitations, "count": len(invitations)})
}

// Cancel requests cooperative cancellation of the project's running workflow
func (h *ProjectHandler) Cancel(c *gin.Context) {
	project, ok := h.ownedProject(c)
	if !ok {
		return
	}

	inst := h.composer.InstanceForProject(project.ID)
	if inst == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "No workflow to cancel"})
		return
	}

	if !h.composer.Cancel(inst.ID) {
		c.JSON(http.StatusConflict, gin.H{"error": "Workflow already finished"})
		return
	}

	// The pipeline records the cancelled status when it terminates; the
	// handler only requests cancellation
	logger.WithContext(c.Request.Context()).Info("workflow cancellation requested",
		"project_id", project.ID,
		"workflow_id", inst.ID,
	)

	c.JSON(http.StatusAccepted, gin.H{"project_id": project.ID, "status": "cancelling"})
}

// ownedProject loads :id and enforces that the caller owns it. Missing
// and foreign projects are indistinguishable to the client.
func (h *ProjectHandler) ownedProject(c *gin.Context) (*model.Project, bool) {
	project, err := h.projects.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load project"})
		}
		return nil, false
	}
	if project.OwnerID != middleware.GetOwnerID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return nil, false
	}
	return project, true
}
