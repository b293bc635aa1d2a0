package web

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/shopagent/agent"
	"github.com/effective-security/shopagent/chatmodel"
	"github.com/effective-security/xlog"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
)

// ChatRequest is the body of POST /v1/chat
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message" binding:"required"`
}

// ChatResponse is returned by POST /v1/chat
type ChatResponse struct {
	SessionID string           `json:"session_id"`
	Reply     string           `json:"reply"`
	Output    *agent.ShopReply `json:"output,omitempty"`
}

// ToolInfo describes a tool in GET /v1/tools
type ToolInfo struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

// ErrorResponse is returned with 4xx and 5xx codes
type ErrorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	agent Agent
}

func writeError(c *gin.Context, code int, err error) {
	if code >= http.StatusInternalServerError {
		logger.ContextKV(c.Request.Context(), xlog.ERROR,
			"path", c.Request.URL.Path,
			"code", code,
			"err", err.Error(),
		)
	}
	c.AbortWithStatusJSON(code, ErrorResponse{Error: err.Error()})
}

// index handles GET /
func (h *handler) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

// healthz handles GET /healthz
func (h *handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// listTools handles GET /v1/tools
func (h *handler) listTools(c *gin.Context) {
	list := h.agent.Registry().List()
	res := make([]ToolInfo, 0, len(list))
	for _, t := range list {
		res = append(res, ToolInfo{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"tools": res})
}

// chat handles POST /v1/chat
func (h *handler) chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, errors.WithMessage(err, "invalid request"))
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	res, err := h.agent.Chat(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, chatmodel.ErrFailedUnmarshalOutput) {
			code = http.StatusBadGateway
		}
		writeError(c, code, err)
		return
	}

	c.JSON(http.StatusOK, ChatResponse{
		SessionID: res.SessionID,
		Reply:     res.Reply,
		Output:    res.Output,
	})
}

// listSessions handles GET /v1/sessions
func (h *handler) listSessions(c *gin.Context) {
	list, err := h.agent.Sessions(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}

// cart handles GET /v1/sessions/:id/cart
func (h *handler) cart(c *gin.Context) {
	res, err := h.agent.Cart(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// reset handles DELETE /v1/sessions/:id
func (h *handler) reset(c *gin.Context) {
	id := c.Param("id")
	if err := h.agent.Reset(c.Request.Context(), id); err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "reset": true})
}
