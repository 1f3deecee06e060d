package identity

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/doctorsportal/portal/internal/platform/apperr"
	"github.com/doctorsportal/portal/internal/platform/auth"
	"github.com/doctorsportal/portal/pkg/pagination"
)

type Handler struct {
	svc    *Service
	tokens auth.TokenIssuer
}

func NewHandler(svc *Service, tokens auth.TokenIssuer) *Handler {
	return &Handler{svc: svc, tokens: tokens}
}

// RegisterRoutes mounts the user, admin and doctor endpoints. authn must
// verify the bearer token; admin must run after it.
func (h *Handler) RegisterRoutes(api *echo.Group, authn, admin echo.MiddlewareFunc) {
	api.PUT("/user/:email", h.UpsertUser)

	signedIn := api.Group("", authn)
	signedIn.GET("/user", h.ListUsers)
	signedIn.GET("/admin/:email", h.CheckAdmin)

	admins := api.Group("", authn, admin)
	admins.PUT("/user/admin/:email", h.PromoteToAdmin)
	admins.DELETE("/user/admin/:email", h.DeleteUser)
	admins.POST("/doctor", h.AddDoctor)
	admins.GET("/doctor", h.ListDoctors)
	admins.DELETE("/doctor/:email", h.DeleteDoctor)
}

func emailParam(c echo.Context) string {
	raw := c.Param("email")
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

type upsertUserRequest struct {
	Name string `json:"name"`
}

type upsertUserResponse struct {
	Result *User  `json:"result"`
	Token  string `json:"token"`
}

func (h *Handler) UpsertUser(c echo.Context) error {
	var req upsertUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.UpsertUser(c.Request().Context(), emailParam(c), req.Name)
	if err != nil {
		return apperr.HTTP(err)
	}
	token, _, err := h.tokens.Issue(u.Email)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, upsertUserResponse{Result: u, Token: token})
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListUsers(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	if link := pg.LinkHeader(c.Request().URL.Path, total); link != "" {
		c.Response().Header().Set("Link", link)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) CheckAdmin(c echo.Context) error {
	isAdmin, err := h.svc.IsAdmin(c.Request().Context(), emailParam(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"admin": isAdmin})
}

func (h *Handler) PromoteToAdmin(c echo.Context) error {
	u, err := h.svc.PromoteToAdmin(c.Request().Context(), emailParam(c))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	if err := h.svc.DeleteUser(c.Request().Context(), emailParam(c)); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AddDoctor(c echo.Context) error {
	var d Doctor
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddDoctor(c.Request().Context(), &d); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	items, err := h.svc.ListDoctors(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	if err := h.svc.DeleteDoctor(c.Request().Context(), emailParam(c)); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
