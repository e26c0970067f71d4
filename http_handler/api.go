package http_handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"storesync/stores"
)

const maxIpcBody = 5 * 1048576

// Ipc serves one IPC request. Failures are reported in the response body, so
// the status is 200 for anything that was read.
func (h *HTTPHandler) Ipc(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIpcBody))
	if err != nil {
		log.Errorf("IPC: Error during HTTP receive %s", err)
		c.Status(http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusOK, h.router.Serve(c.Request.Context(), body))
}

func (h *HTTPHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pending": h.manager.TotalSize(),
		"buffers": h.manager.Statuses(),
	})
}

func (h *HTTPHandler) FlushAll(c *gin.Context) {
	if err := h.manager.FlushAll(c.Request.Context()); err != nil {
		log.Warnf("POST /api/flush: %s", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) ListConversations(c *gin.Context) {
	pinned, _ := strconv.ParseBool(c.Query("pinned"))
	c.JSON(http.StatusOK, h.conversations.List(stores.ListFilter{
		Query:      c.Query("q"),
		PinnedOnly: pinned,
	}))
}

func (h *HTTPHandler) GetConversation(c *gin.Context) {
	conversation, err := h.conversations.Get(c.Param("id"))
	if errors.Is(err, stores.ErrConversationNotFound) {
		c.Status(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, conversation)
}

func (h *HTTPHandler) ListResources(c *gin.Context) {
	c.JSON(http.StatusOK, h.workspace.ByWorkspace(c.Param("workspace_id")))
}
