package panel

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hyperifyio/urlpreview/internal/block"
	"github.com/hyperifyio/urlpreview/internal/editor"
)

// Handlers answers every action with the resulting editor view, so the
// panel always renders the inline message the controller set.
type Handlers struct {
	ctrl *editor.Controller
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handlers) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.View())
}

func (h *Handlers) EditSelected(c *gin.Context) {
	if err := h.ctrl.EditSelected(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, h.ctrl.View())
		return
	}
	c.JSON(http.StatusOK, h.ctrl.View())
}

func (h *Handlers) UpdateDraft(c *gin.Context) {
	var p block.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid patch"})
		return
	}
	if err := h.ctrl.Update(p); err != nil {
		h.actionError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ctrl.View())
}

type chooseImageRequest struct {
	Index *int `json:"index"`
}

func (h *Handlers) ChooseImage(c *gin.Context) {
	var req chooseImageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Index == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index required"})
		return
	}
	if err := h.ctrl.ChooseImage(*req.Index); err != nil {
		h.actionError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ctrl.View())
}

func (h *Handlers) Save(c *gin.Context) {
	if err := h.ctrl.Save(c.Request.Context()); err != nil {
		h.actionError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ctrl.View())
}

func (h *Handlers) Cancel(c *gin.Context) {
	h.ctrl.Cancel()
	c.JSON(http.StatusOK, h.ctrl.View())
}

func (h *Handlers) actionError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, editor.ErrNoDraft):
		status = http.StatusConflict
	case errors.Is(err, editor.ErrNoCandidate):
		status = http.StatusBadRequest
	case errors.Is(err, editor.ErrSaveFailed):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error(), "view": h.ctrl.View()})
}
