package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/chxlky/sentry-trello/database"
	"github.com/chxlky/sentry-trello/internal/models"
	"github.com/chxlky/sentry-trello/plugin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type GroupStore interface {
	Create(ctx context.Context, group *models.Group) error
	Get(ctx context.Context, id string) (*models.Group, error)
	AddEvent(ctx context.Context, event *models.Event) error
	LatestEvent(ctx context.Context, groupID string) (*models.Event, error)
}

type Handler struct {
	Plugin    plugin.IssuePlugin
	Groups    GroupStore
	URLPrefix string
}

func (h *Handler) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) PluginInfoHandler(c *gin.Context) {
	p := h.Plugin
	c.JSON(http.StatusOK, gin.H{
		"slug":           p.Slug(),
		"title":          p.Title(),
		"conf_key":       p.ConfKey(),
		"description":    p.Description(),
		"version":        p.Version(),
		"author":         p.Author(),
		"author_url":     p.AuthorURL(),
		"resource_links": p.ResourceLinks(),
	})
}

func (h *Handler) ConfigureFormHandler(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	form, err := h.Plugin.ProjectConfForm(c.Request.Context(), projectID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	configured, err := h.Plugin.IsConfigured(c.Request.Context(), projectID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"plugin":     h.Plugin.Slug(),
		"title":      h.Plugin.Title(),
		"configured": configured,
		"form":       form,
	})
}

func (h *Handler) ConfigureSaveHandler(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	var values map[string]string
	if err := c.ShouldBindJSON(&values); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	if err := h.Plugin.SaveConfig(c.Request.Context(), projectID, values); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Configuration saved"})
}

// OptionsHandler serves the cascading select lists fetched over AJAX.
func (h *Handler) OptionsHandler(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	field := c.Query("field")
	options, err := h.Plugin.ViewOptions(c.Request.Context(), projectID, field, c.Request.URL.Query())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"field": field, "options": options})
}

func (h *Handler) CreateGroupHandler(c *gin.Context) {
	var group models.Group
	if err := c.ShouldBindJSON(&group); err != nil || group.ProjectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	if err := h.Groups.Create(c.Request.Context(), &group); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (h *Handler) CreateEventHandler(c *gin.Context) {
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}
	var event models.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	event.GroupID = group.ID
	if err := h.Groups.AddEvent(c.Request.Context(), &event); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

// NewIssueFormHandler renders the create-card form for a group, or the
// linked issue when one already exists.
func (h *Handler) NewIssueFormHandler(c *gin.Context) {
	ctx := c.Request.Context()
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}
	pg := h.pluginGroup(group)

	linked, err := h.Plugin.LinkedIssue(ctx, pg)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if linked != nil {
		c.JSON(http.StatusOK, gin.H{"issue": linked})
		return
	}

	configured, err := h.Plugin.IsConfigured(ctx, group.ProjectID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !configured {
		c.JSON(http.StatusConflict, gin.H{"error": "plugin_misconfigured"})
		return
	}

	event, err := h.Groups.LatestEvent(ctx, group.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	initial, err := h.Plugin.GetInitialFormData(ctx, pg, pluginEvent(event))
	if err != nil {
		if plugin.IsValidationError(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "plugin_misconfigured", "message": err.Error()})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"title": h.Plugin.GetNewIssueTitle(),
		"form":  h.Plugin.NewIssueForm(initial),
	})
}

func (h *Handler) CreateIssueHandler(c *gin.Context) {
	ctx := c.Request.Context()
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}
	var formData map[string]string
	if err := c.ShouldBindJSON(&formData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}

	configured, err := h.Plugin.IsConfigured(ctx, group.ProjectID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !configured {
		c.JSON(http.StatusConflict, gin.H{"error": "plugin_misconfigured"})
		return
	}

	event, err := h.Groups.LatestEvent(ctx, group.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	issue, err := h.Plugin.Action(ctx, h.pluginGroup(group), pluginEvent(event), formData)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, issue)
}

func (h *Handler) UnlinkIssueHandler(c *gin.Context) {
	group, ok := h.loadGroup(c)
	if !ok {
		return
	}
	if err := h.Plugin.UnlinkIssue(c.Request.Context(), h.pluginGroup(group)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// projectParam rejects a blank :project so no lookup runs without a project id.
func projectParam(c *gin.Context) (string, bool) {
	projectID := strings.TrimSpace(c.Param("project"))
	if projectID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return "", false
	}
	return projectID, true
}

func (h *Handler) loadGroup(c *gin.Context) (*models.Group, bool) {
	group, err := h.Groups.Get(c.Request.Context(), strings.TrimSpace(c.Param("group")))
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return nil, false
	}
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return group, true
}

func (h *Handler) pluginGroup(group *models.Group) plugin.Group {
	return plugin.Group{
		ID:        group.ID,
		ProjectID: group.ProjectID,
		Message:   group.Message,
		Culprit:   group.Culprit,
		Permalink: fmt.Sprintf("%s/groups/%s/", h.URLPrefix, group.ID),
	}
}

func pluginEvent(event *models.Event) plugin.Event {
	return plugin.Event{ID: event.ID, Message: event.Message, Body: event.Body}
}

// respondError maps plugin validation errors to 400 and everything else
// to 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	var fe plugin.FormErrors
	if errors.As(err, &fe) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": fe})
		return
	}
	var ve *plugin.ValidationError
	if errors.As(err, &ve) {
		field := ve.Field
		if field == "" {
			field = "__all__"
		}
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{field: ve.Message}})
		return
	}

	zap.L().Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
