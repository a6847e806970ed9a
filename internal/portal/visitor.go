package portal

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthtracker/portal/internal/core/gate"
)

const (
	visitorCookie = "ht_vid"
	tokenCookie   = "ht_token"

	visitorCookieTTL = 365 * 24 * time.Hour
)

// visitor returns the gate for the browser behind c. A browser without a
// token cookie only gets a gate it already has, or nil, unless create is
// set; create also issues the visitor id cookie on first contact. A token
// cookie seeds the gate only when it is created.
func (s *Server) visitor(c echo.Context, create bool) *gate.Gate {
	vid := ""
	if ck, err := c.Cookie(visitorCookie); err == nil {
		if _, perr := uuid.Parse(ck.Value); perr == nil {
			vid = ck.Value
		}
	}

	seed := ""
	if ck, err := c.Cookie(tokenCookie); err == nil {
		seed = ck.Value
	}

	if seed == "" && !create {
		if vid == "" {
			return nil
		}
		g, _ := s.gates.Lookup(vid)
		return g
	}

	if vid == "" {
		vid = uuid.NewString()
		c.SetCookie(s.cookie(visitorCookie, vid, visitorCookieTTL))
	}

	g, created := s.gates.Acquire(vid, seed)
	if created {
		s.log.Debug().Str("visitor", vid).Bool("seeded", seed != "").Msg("gate created")
	}
	return g
}

// storeToken writes the identity token cookie. remember makes it outlive
// the browser session.
func (s *Server) storeToken(c echo.Context, token string, remember bool) {
	var ttl time.Duration
	if remember {
		ttl = s.rememberFor
	}
	c.SetCookie(s.cookie(tokenCookie, token, ttl))
}

func (s *Server) clearToken(c echo.Context) {
	ck := s.cookie(tokenCookie, "", 0)
	ck.MaxAge = -1
	ck.Expires = time.Unix(0, 0)
	c.SetCookie(ck)
}

// syncToken drops a token cookie the gate no longer holds, for instance
// after the probe found it expired.
func (s *Server) syncToken(c echo.Context, g *gate.Gate) {
	ck, err := c.Cookie(tokenCookie)
	if err != nil || ck.Value == "" {
		return
	}
	if g.Token() == "" && !g.Snapshot().IsLoading {
		s.clearToken(c)
	}
}

func (s *Server) cookie(name, value string, ttl time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		ck.MaxAge = int(ttl.Seconds())
		ck.Expires = time.Now().Add(ttl)
	}
	return ck
}
