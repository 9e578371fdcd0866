package gateway

import (
	"fmt"
	"net/http"

	"github.com/example/foodcart/pkg/cart"
	"github.com/example/foodcart/pkg/catalog"
	"github.com/example/foodcart/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type cartResponse struct {
	Lines     []cart.Line     `json:"lines"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

func renderCart(store *cart.Store) cartResponse {
	return cartResponse{Lines: store.Lines(), Total: store.Total(), ItemCount: store.ItemCount()}
}

type addItemRequest struct {
	FoodID        string               `json:"food_id" binding:"required"`
	Quantity      int                  `json:"quantity" binding:"required,min=1"`
	Customization models.Customization `json:"customization"`
}

type editItemRequest struct {
	Quantity      int                  `json:"quantity" binding:"required,min=1"`
	Customization models.Customization `json:"customization"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (g *Gateway) listCustomizations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sides":  g.catalog.Options(catalog.Sides),
		"drinks": g.catalog.Options(catalog.Drinks),
		"extras": g.catalog.Options(catalog.Extras),
	})
}

// checkOptions rejects option ids the catalog does not know.
func (g *Gateway) checkOptions(custom models.Customization) error {
	check := func(cat catalog.Category, id string) error {
		if _, err := g.catalog.Lookup(cat, id); err != nil {
			return fmt.Errorf("%w: %w", cart.ErrInvalidSelection, err)
		}
		return nil
	}
	for _, id := range custom.SelectedSideIDs {
		if err := check(catalog.Sides, id); err != nil {
			return err
		}
	}
	for _, id := range custom.SelectedDrinkIDs {
		if err := check(catalog.Drinks, id); err != nil {
			return err
		}
	}
	for _, e := range custom.Extras {
		if err := check(catalog.Extras, e.OptionID); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) getCart(c *gin.Context) {
	store := g.carts.Get(c.Request.Context(), identity(c).UserID)
	c.JSON(http.StatusOK, renderCart(store))
}

func (g *Gateway) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := g.checkOptions(req.Customization); err != nil {
		g.fail(c, err)
		return
	}

	item, err := g.menu.Get(c.Request.Context(), req.FoodID)
	if err != nil {
		g.fail(c, err)
		return
	}
	if !item.Available {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": item.Name + " is not available", "code": "unavailable"})
		return
	}

	ctx := c.Request.Context()
	session := identity(c).UserID
	store := g.carts.Get(ctx, session)
	lineID, err := store.AddToCart(cart.Selection{
		FoodID:        item.ID,
		Name:          item.Name,
		BasePrice:     item.BasePrice,
		ImageURL:      item.ImageURL,
		Quantity:      req.Quantity,
		Customization: req.Customization,
	})
	if err != nil {
		g.fail(c, err)
		return
	}
	g.carts.Save(ctx, session, store)

	c.JSON(http.StatusCreated, gin.H{"line_id": lineID, "cart": renderCart(store)})
}

func (g *Gateway) editCartItem(c *gin.Context) {
	var req editItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := g.checkOptions(req.Customization); err != nil {
		g.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	session := identity(c).UserID
	store := g.carts.Get(ctx, session)
	if err := store.UpdateLine(c.Param("id"), cart.Edit{Quantity: req.Quantity, Customization: req.Customization}); err != nil {
		g.fail(c, err)
		return
	}
	g.carts.Save(ctx, session, store)
	c.JSON(http.StatusOK, renderCart(store))
}

// setCartItemQuantity sets a quantity; zero or less removes the line.
func (g *Gateway) setCartItemQuantity(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	session := identity(c).UserID
	store := g.carts.Get(ctx, session)
	store.UpdateQuantity(c.Param("id"), *req.Quantity)
	g.carts.Save(ctx, session, store)
	c.JSON(http.StatusOK, renderCart(store))
}

func (g *Gateway) removeCartItem(c *gin.Context) {
	ctx := c.Request.Context()
	session := identity(c).UserID
	store := g.carts.Get(ctx, session)
	store.RemoveFromCart(c.Param("id"))
	g.carts.Save(ctx, session, store)
	c.JSON(http.StatusOK, renderCart(store))
}

func (g *Gateway) clearCart(c *gin.Context) {
	ctx := c.Request.Context()
	session := identity(c).UserID
	store := g.carts.Get(ctx, session)
	store.Clear()
	g.carts.Save(ctx, session, store)
	c.JSON(http.StatusOK, renderCart(store))
}
