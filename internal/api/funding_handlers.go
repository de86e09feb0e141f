package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ujpm/GGH-website-sub000/internal/auth"
	"github.com/ujpm/GGH-website-sub000/internal/funding"
	"github.com/ujpm/GGH-website-sub000/internal/models"
)

func (s *Server) handleListCalls(c echo.Context) error {
	params, err := funding.ParseListParams(c.QueryParams())
	if err != nil {
		return s.fail(c, err)
	}
	result, err := s.Funding.List(c.Request().Context(), params)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetCall(c echo.Context) error {
	call, err := s.Funding.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	setETag(c, call)
	return c.JSON(http.StatusOK, call)
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.Funding.Stats(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleCreateCall(c echo.Context) error {
	var in models.CreateInput
	if err := c.Bind(&in); err != nil {
		return s.fail(c, bindError(err))
	}
	call, err := s.Funding.Create(c.Request().Context(), in)
	if err != nil {
		return s.fail(c, err)
	}
	s.audit(c, "create", call.ID)
	setETag(c, call)
	return c.JSON(http.StatusCreated, call)
}

// handleUpdateCall applies a partial update. The expected version comes from
// the body's "version" or, failing that, an If-Match header.
func (s *Server) handleUpdateCall(c echo.Context) error {
	var in models.UpdateInput
	if err := c.Bind(&in); err != nil {
		return s.fail(c, bindError(err))
	}
	if in.Version == nil {
		if v, ok := ifMatchVersion(c.Request().Header.Get("If-Match")); ok {
			in.Version = &v
		}
	}

	call, err := s.Funding.Update(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return s.fail(c, err)
	}
	s.audit(c, "update", call.ID)
	setETag(c, call)
	return c.JSON(http.StatusOK, call)
}

func (s *Server) handleDeleteCall(c echo.Context) error {
	id := c.Param("id")
	if err := s.Funding.Delete(c.Request().Context(), id); err != nil {
		return s.fail(c, err)
	}
	s.audit(c, "delete", id)
	return c.NoContent(http.StatusNoContent)
}

// bindError turns a body decoding failure into a ValidationError naming the
// offending field. Deadline is the only time-typed field in the inputs.
func bindError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Internal != nil {
		err = he.Internal
	}

	var (
		te *json.UnmarshalTypeError
		pe *time.ParseError
		se *json.SyntaxError
	)
	switch {
	case errors.As(err, &te) && te.Field != "":
		return &funding.ValidationError{Fields: map[string]string{te.Field: "must be a " + te.Type.String()}}
	case errors.As(err, &pe), strings.Contains(err.Error(), "Time.UnmarshalJSON"):
		return &funding.ValidationError{Fields: map[string]string{"deadline": "must be an RFC 3339 timestamp"}}
	case errors.As(err, &se):
		return &funding.ValidationError{Fields: map[string]string{"body": "malformed JSON at offset " + strconv.FormatInt(se.Offset, 10)}}
	default:
		return &funding.ValidationError{Fields: map[string]string{"body": "invalid request body"}}
	}
}

// fail maps domain errors to responses. Anything unrecognized is logged and
// reported as a 500 whose message is only exposed in development.
func (s *Server) fail(c echo.Context, err error) error {
	var (
		ve  *funding.ValidationError
		nf  *funding.NotFoundError
		ce  *funding.ConflictError
		ine *auth.InputError
	)
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "validation failed", "details": ve.Fields})
	case errors.As(err, &ine):
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "validation failed", "details": map[string]string{ine.Field: ine.Msg}})
	case errors.As(err, &nf), errors.Is(err, funding.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Funding call not found"})
	case errors.As(err, &ce):
		return c.JSON(http.StatusConflict, map[string]any{"error": ce.Error(), "currentVersion": ce.Actual})
	case errors.Is(err, auth.ErrInvalidCreds):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
	case errors.Is(err, auth.ErrUserExists):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}

	s.log.Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err))
	msg := "Internal Server Error"
	if s.dev {
		msg = err.Error()
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": msg})
}

func (s *Server) audit(c echo.Context, action, id string) {
	fields := []zap.Field{zap.String("action", action), zap.String("call_id", id)}
	if claims, err := auth.ClaimsFromContext(c); err == nil {
		fields = append(fields, zap.String("user_id", claims.UserID))
	}
	s.log.Info("admin mutation", fields...)
}

func setETag(c echo.Context, call *models.FundingCall) {
	c.Response().Header().Set("ETag", `"`+strconv.Itoa(call.Version)+`"`)
}

func ifMatchVersion(h string) (int, bool) {
	h = strings.TrimPrefix(strings.TrimSpace(h), "W/")
	h = strings.Trim(h, `"`)
	if h == "" {
		return 0, false
	}
	v, err := strconv.Atoi(h)
	if err != nil || v < 1 {
		return 0, false
	}
	return v, true
}
