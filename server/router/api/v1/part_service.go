package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"github.com/partdesk/partdesk/store"
)

const defaultPartSearchLimit = 20

func (s *APIV1Service) registerPartRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/parts")
	g.GET("", s.searchParts)
	g.GET("/:uid", s.getPart)
	g.GET("/:uid/models", s.getCompatibleModels)
}

func (s *APIV1Service) searchParts(c *echo.Context) error {
	find := &store.FindPart{Limit: defaultPartSearchLimit}
	if q := c.QueryParam("q"); q != "" {
		find.Search = &q
	}
	if pn := c.QueryParam("part_number"); pn != "" {
		find.PartNumber = &pn
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 100 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer between 1 and 100")
		}
		find.Limit = limit
	}

	parts, err := s.Store.SearchParts(c.Request().Context(), find)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"parts": parts,
		"count": len(parts),
	})
}

func (s *APIV1Service) getPart(c *echo.Context) error {
	uid := c.Param("uid")
	part, err := s.Store.GetPart(c.Request().Context(), &store.FindPart{UID: &uid})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if part == nil {
		return echo.NewHTTPError(http.StatusNotFound, "part not found")
	}
	return c.JSON(http.StatusOK, part)
}

func (s *APIV1Service) getCompatibleModels(c *echo.Context) error {
	uid := c.Param("uid")
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}
	models, err := s.Store.GetCompatibleModels(c.Request().Context(), uid, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"models": models,
		"count":  len(models),
	})
}
