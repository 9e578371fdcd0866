package gateway

import (
	"fmt"
	"net/http"

	"github.com/example/foodcart/pkg/menu"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// listMenu shows available items only; staff can pass all=true to see the
// whole menu.
func (g *Gateway) listMenu(c *gin.Context) {
	opts := menu.ListOptions{Category: c.Query("category"), AvailableOnly: true}
	if c.Query("all") == "true" {
		opts.AvailableOnly = false
	}
	items, err := g.menu.List(c.Request.Context(), opts)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

func (g *Gateway) getMenuItem(c *gin.Context) {
	item, err := g.menu.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

func (g *Gateway) createMenuItem(c *gin.Context) {
	var in menu.ItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	item, err := g.menu.Create(c.Request.Context(), in)
	if err != nil {
		g.fail(c, err)
		return
	}
	g.logger.Info("Menu item created", zap.String("id", item.ID), zap.String("name", item.Name))
	c.JSON(http.StatusCreated, gin.H{"item": item})
}

func (g *Gateway) updateMenuItem(c *gin.Context) {
	var in menu.ItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	item, err := g.menu.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

func (g *Gateway) deleteMenuItem(c *gin.Context) {
	ctx := c.Request.Context()
	item, err := g.menu.Get(ctx, c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	if err := g.menu.Delete(ctx, item.ID); err != nil {
		g.fail(c, err)
		return
	}
	g.dropImage(item.ImageURL)
	c.Status(http.StatusNoContent)
}

// uploadMenuImage stores the "image" form file and points the item at it.
func (g *Gateway) uploadMenuImage(c *gin.Context) {
	if g.images == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "image storage is not configured"})
		return
	}
	ctx := c.Request.Context()
	item, err := g.menu.Get(ctx, c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}

	header, err := c.FormFile("image")
	if err != nil {
		badRequest(c, err)
		return
	}
	if header.Size > menu.MaxImageSize {
		g.fail(c, fmt.Errorf("%w: larger than %d bytes", menu.ErrInvalidImage, menu.MaxImageSize))
		return
	}
	f, err := header.Open()
	if err != nil {
		badRequest(c, err)
		return
	}
	defer f.Close()

	url, err := g.images.Upload(ctx, header.Filename, f)
	if err != nil {
		g.fail(c, err)
		return
	}
	updated, err := g.menu.Update(ctx, item.ID, menu.ItemInput{ImageURL: &url})
	if err != nil {
		g.dropImage(url)
		g.fail(c, err)
		return
	}
	g.dropImage(item.ImageURL)
	c.JSON(http.StatusOK, gin.H{"item": updated, "image_url": url})
}

func (g *Gateway) dropImage(url string) {
	if g.images == nil || url == "" {
		return
	}
	if err := g.images.Delete(url); err != nil {
		g.logger.Warn("Failed to delete image", zap.String("url", url), zap.Error(err))
	}
}
