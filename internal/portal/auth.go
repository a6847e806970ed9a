package portal

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/healthtracker/portal/internal/core/domain"
	"github.com/healthtracker/portal/internal/core/forms"
	"github.com/healthtracker/portal/internal/core/gate"
	"github.com/healthtracker/portal/internal/core/routing"
	"github.com/healthtracker/portal/internal/pkg/metrics"
)

const (
	modeLogin    = "login"
	modeRegister = "register"
	modeForgot   = "forgot"

	resetNotice = "Password reset functionality will be implemented soon."
)

// authPage renders the sign-in page, or sends a signed-in visitor home.
func (s *Server) authPage(c echo.Context, session domain.Session) error {
	if session.CurrentUser != nil {
		return c.Redirect(http.StatusSeeOther, routing.HomePath)
	}

	data := viewData{Title: "Sign In", Mode: modeLogin}
	switch c.QueryParam("mode") {
	case modeRegister:
		data.Title, data.Mode = "Create Account", modeRegister
	case modeForgot:
		data.Title, data.Mode = "Reset Password", modeForgot
		if c.QueryParam("sent") != "" {
			data.Notice = resetNotice
		}
	}
	return c.Render(http.StatusOK, viewAuth, data)
}

func (s *Server) login(c echo.Context) error {
	st := forms.NewState(forms.LoginSchema, forms.LoginSchema.Collect(c.FormValue))
	remember := c.FormValue("remember") != ""
	if !submit(st) {
		return s.renderForm(c, http.StatusUnprocessableEntity, modeLogin, st, remember, "")
	}

	g, err := s.settledVisitor(c)
	if err != nil {
		return s.renderForm(c, http.StatusConflict, modeLogin, st, remember, domain.AsAuthError(err).UserMessage())
	}

	if _, err := g.Login(outboundContext(c), st.Value(forms.FieldEmail), st.Value(forms.FieldPassword)); err != nil {
		ae := domain.AsAuthError(err)
		return s.renderForm(c, authStatus(ae.Kind), modeLogin, st, remember, ae.UserMessage())
	}

	s.storeToken(c, g.Token(), remember)
	return c.Redirect(http.StatusSeeOther, routing.HomePath)
}

func (s *Server) register(c echo.Context) error {
	st := forms.NewState(forms.RegisterSchema, forms.RegisterSchema.Collect(c.FormValue))
	if !submit(st) {
		return s.renderForm(c, http.StatusUnprocessableEntity, modeRegister, st, false, "")
	}

	g, err := s.settledVisitor(c)
	if err != nil {
		return s.renderForm(c, http.StatusConflict, modeRegister, st, false, domain.AsAuthError(err).UserMessage())
	}

	profile := domain.Profile{
		Email:     st.Value(forms.FieldEmail),
		Password:  st.Value(forms.FieldPassword),
		FirstName: st.Value(forms.FieldFirstName),
		LastName:  st.Value(forms.FieldLastName),
		Phone:     st.Value(forms.FieldPhone),
	}
	if _, err := g.Register(outboundContext(c), profile); err != nil {
		ae := domain.AsAuthError(err)
		return s.renderForm(c, authStatus(ae.Kind), modeRegister, st, false, ae.UserMessage())
	}

	s.storeToken(c, g.Token(), false)
	return c.Redirect(http.StatusSeeOther, routing.HomePath)
}

// logout always ends the local session. A failed server-side revocation is
// logged and the visitor is signed out regardless.
func (s *Server) logout(c echo.Context) error {
	g := s.visitor(c, false)
	if g == nil {
		s.clearToken(c)
		return c.Redirect(http.StatusSeeOther, routing.AuthPath)
	}
	if s.await(c.Request().Context(), g, settled).IsLoading {
		return domain.NewAuthError(domain.KindBusy, domain.ErrCommandInFlight)
	}

	if err := g.Logout(outboundContext(c)); err != nil {
		if errors.Is(err, domain.ErrCommandInFlight) {
			return err
		}
		s.log.Warn().Err(err).Msg("logout: remote revocation failed")
	}

	s.clearToken(c)
	return c.Redirect(http.StatusSeeOther, routing.AuthPath)
}

// validate answers live field validation for a form. Errors are only
// reported for fields listed in "touched", or all of them once "submitted"
// is set.
func (s *Server) validate(c echo.Context) error {
	schema, ok := forms.Lookup(c.Param("form"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown form")
	}

	st := forms.NewState(schema, schema.Collect(c.FormValue))
	if c.FormValue("submitted") != "" {
		st.Submit()
	} else {
		for _, name := range strings.Split(c.FormValue("touched"), ",") {
			if name = strings.TrimSpace(name); name != "" {
				st.Touch(name)
			}
		}
	}

	return c.JSON(http.StatusOK, forms.Result{Errors: st.Visible(), Valid: st.Ready()})
}

// settledVisitor returns the visitor's gate, creating it if needed, once
// any pending command has resolved, or ErrCommandInFlight if it does not
// within the probe grace.
func (s *Server) settledVisitor(c echo.Context) (*gate.Gate, error) {
	g := s.visitor(c, true)
	if s.await(c.Request().Context(), g, settled).IsLoading {
		return nil, domain.NewAuthError(domain.KindBusy, domain.ErrCommandInFlight)
	}
	return g, nil
}

func settled(snap domain.Session) bool { return !snap.IsLoading }

func (s *Server) renderForm(c echo.Context, code int, mode string, st *forms.State, remember bool, banner string) error {
	values := make(map[string]string)
	for _, name := range st.Schema().FieldNames() {
		values[name] = st.Value(name)
	}
	title := "Sign In"
	if mode == modeRegister {
		title = "Create Account"
	}
	return c.Render(code, viewAuth, viewData{
		Title:    title,
		Mode:     mode,
		Values:   values,
		Errors:   st.Visible(),
		Banner:   banner,
		Remember: remember,
	})
}

func submit(st *forms.State) bool {
	ok := st.Submit()
	result := "valid"
	if !ok {
		result = "invalid"
	}
	metrics.FormSubmissionsTotal.WithLabelValues(st.Schema().Name, result).Inc()
	return ok
}
