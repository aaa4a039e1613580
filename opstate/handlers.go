package opstate

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes adds read-only operational endpoints to an Echo group.
func (t *Tracker) RegisterRoutes(g *echo.Group) {
	g.GET("/state", t.handleList)
	g.GET("/state/:id", t.handleGet)
	g.GET("/state/summary", t.handleSummary)
}

func (t *Tracker) handleList(c echo.Context) error {
	return c.JSON(http.StatusOK, t.List())
}

func (t *Tracker) handleGet(c echo.Context) error {
	e := t.Get(c.Param("id"))
	if e == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "execution not found"})
	}
	return c.JSON(http.StatusOK, e)
}

func (t *Tracker) handleSummary(c echo.Context) error {
	return c.JSON(http.StatusOK, t.Summary())
}
