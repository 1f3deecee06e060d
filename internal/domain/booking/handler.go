package booking

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/doctorsportal/portal/internal/platform/apperr"
	"github.com/doctorsportal/portal/internal/platform/auth"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the booking, availability and payment endpoints.
// authn must verify the bearer token; admin must run after it.
func (h *Handler) RegisterRoutes(api *echo.Group, authn, admin echo.MiddlewareFunc) {
	api.POST("/booking", h.CreateBooking)
	api.GET("/available", h.Availability)

	signedIn := api.Group("", authn)
	signedIn.GET("/booking", h.ListBookings)
	signedIn.GET("/booking/:id", h.GetBooking)
	signedIn.PATCH("/booking/:id", h.ConfirmPayment)
	signedIn.POST("/create-payment-intent", h.CreatePaymentIntent)

	admins := api.Group("", authn, admin)
	admins.GET("/booking/export", h.Export)
}

func identity(c echo.Context) (auth.Identity, error) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		return auth.Identity{}, apperr.HTTP(apperr.ErrUnauthenticated)
	}
	return id, nil
}

func bookingID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}
	return id, nil
}

func (h *Handler) CreateBooking(c echo.Context) error {
	var b Booking
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.CreateBooking(c.Request().Context(), &b)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Availability(c echo.Context) error {
	items, err := h.svc.ComputeAvailability(c.Request().Context(), c.QueryParam("date"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListBookings(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListBookingsForPatient(c.Request().Context(), id, c.QueryParam("patient"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetBooking(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	bid, err := bookingID(c)
	if err != nil {
		return err
	}
	b, err := h.svc.GetBooking(c.Request().Context(), id, bid)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ConfirmPayment(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	bid, err := bookingID(c)
	if err != nil {
		return err
	}
	var conf PaymentConfirmation
	if err := c.Bind(&conf); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.ConfirmPayment(c.Request().Context(), id, bid, conf)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) CreatePaymentIntent(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	var req PaymentIntentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	intent, err := h.svc.CreatePaymentIntent(c.Request().Context(), id, req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, intent)
}

func (h *Handler) Export(c echo.Context) error {
	date := c.QueryParam("date")
	data, err := h.svc.ExportBookings(c.Request().Context(), date)
	if err != nil {
		return apperr.HTTP(err)
	}
	name := "bookings.xlsx"
	if date != "" {
		name = fmt.Sprintf("bookings_%s.xlsx", sanitizeFilename(date))
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Stream(http.StatusOK, xlsxContentType, bytes.NewReader(data))
}

func sanitizeFilename(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
