package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/userstate"
	"github.com/Pal-droid/anizone/internal/util"
)

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) < len("Bearer ") || !strings.EqualFold(h[:len("Bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[len("Bearer "):])
}

// markSession sets the cleared header when the backend rejected the token.
func markSession(c *gin.Context, st userstate.Status) {
	if st.Anonymous {
		c.Header(SessionClearedHeader, "true")
	}
}

func userFail(c *gin.Context, err error) {
	var backendErr *userstate.BackendError
	switch {
	case errors.Is(err, userstate.ErrInvalidEntry):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, userstate.ErrLocalUnavailable):
		fail(c, http.StatusServiceUnavailable, "local user state is unavailable")
	case errors.As(err, &backendErr):
		fail(c, http.StatusBadGateway, "user backend error")
	default:
		util.Warn("User state call failed", "error", err)
		fail(c, http.StatusInternalServerError, "could not update user state")
	}
}

func (h *Handler) userLists(c *gin.Context) {
	lists, st, err := h.deps.User.Lists(c.Request.Context(), bearerToken(c))
	markSession(c, st)
	if err != nil {
		userFail(c, err)
		return
	}
	if lists == nil {
		lists = models.UserLists{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "lists": lists})
}

func (h *Handler) putListEntry(c *gin.Context) {
	var e models.ListEntry
	if err := c.ShouldBindJSON(&e); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	e.SeriesKey = c.Param("key")
	st, err := h.deps.User.PutListEntry(c.Request.Context(), bearerToken(c), c.Param("list"), e)
	markSession(c, st)
	if err != nil {
		userFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) deleteListEntry(c *gin.Context) {
	st, err := h.deps.User.DeleteListEntry(c.Request.Context(), bearerToken(c), c.Param("list"), c.Param("key"))
	markSession(c, st)
	if err != nil {
		userFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) userContinue(c *gin.Context) {
	entries, st, err := h.deps.User.Continue(c.Request.Context(), bearerToken(c))
	markSession(c, st)
	if err != nil {
		userFail(c, err)
		return
	}
	if entries == nil {
		entries = []models.ContinueEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "entries": entries})
}

func (h *Handler) putContinue(c *gin.Context) {
	var e models.ContinueEntry
	if err := c.ShouldBindJSON(&e); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	e.SeriesKey = c.Param("key")
	st, err := h.deps.User.PutContinue(c.Request.Context(), bearerToken(c), e)
	markSession(c, st)
	if err != nil {
		userFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
