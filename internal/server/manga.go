package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Pal-droid/anizone/internal/models"
	"github.com/Pal-droid/anizone/internal/util"
)

func (h *Handler) mangaSearch(c *gin.Context) {
	var q models.SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "invalid query")
		return
	}
	page, err := h.deps.Manga.MangaSearch(c.Request.Context(), q)
	if err != nil {
		util.Warn("Manga search failed", "keyword", q.Keyword, "error", err)
		fail(c, http.StatusBadGateway, "search is unavailable, try again")
		return
	}
	if page.Items == nil {
		page.Items = []models.SearchItem{}
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) mangaInfo(c *gin.Context) {
	u := c.Query("url")
	if u == "" {
		fail(c, http.StatusBadRequest, "url is required")
		return
	}
	info, err := h.deps.Manga.MangaInfo(c.Request.Context(), u)
	if err != nil {
		util.Warn("Manga info failed", "url", u, "error", err)
		scrapeFail(c, err, "could not load this manga, try again")
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) mangaChapter(c *gin.Context) {
	u := c.Query("url")
	if u == "" {
		fail(c, http.StatusBadRequest, "url is required")
		return
	}
	pages, err := h.deps.Manga.ChapterPages(c.Request.Context(), u)
	if err != nil {
		util.Warn("Chapter pages failed", "url", u, "error", err)
		scrapeFail(c, err, "could not load this chapter, try again")
		return
	}
	if pages == nil {
		pages = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "pages": pages})
}
