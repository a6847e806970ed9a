// Package routing maps request paths to page targets and decides whether a
// visitor may see them.
package routing

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Visibility classifies who may render a route.
type Visibility string

const (
	Public      Visibility = "public"
	Protected   Visibility = "protected"
	TokenScoped Visibility = "token_scoped"
	Fallback    Visibility = "fallback"
)

// Target names the page a route renders. The router never looks inside it.
type Target string

const (
	TargetAuth        Target = "auth"
	TargetDoctorView  Target = "doctor_view"
	TargetDashboard   Target = "dashboard"
	TargetVitals      Target = "vitals"
	TargetMedications Target = "medications"
	TargetSymptoms    Target = "symptoms"
	TargetRecords     Target = "records"
	TargetShare       Target = "share"
	TargetProfile     Target = "profile"
	TargetNotFound    Target = "not_found"
)

// AuthPath is where protected routes send anonymous visitors.
const AuthPath = "/auth"

// HomePath is where a successful sign-in lands.
const HomePath = "/"

// RouteDescriptor is one entry of the routing table.
type RouteDescriptor struct {
	Pattern    string
	Visibility Visibility
	Target     Target

	segments []segment
}

type segment struct {
	literal string
	param   string // non-empty for ":name" segments
}

// Match is the result of resolving a path.
type Match struct {
	Route  RouteDescriptor
	Params map[string]string
}

// Param returns a captured path parameter, or "".
func (m Match) Param(name string) string {
	return m.Params[name]
}

// Table is an ordered, immutable list of routes with a catch-all.
type Table struct {
	routes   []RouteDescriptor
	fallback RouteDescriptor
}

// NewTable compiles routes in order. fallback is returned for any path no
// route matches.
func NewTable(fallback RouteDescriptor, routes ...RouteDescriptor) (*Table, error) {
	t := &Table{
		routes:   make([]RouteDescriptor, 0, len(routes)),
		fallback: fallback,
	}
	t.fallback.Visibility = Fallback
	for _, r := range routes {
		segs, err := compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", r.Pattern, err)
		}
		r.segments = segs
		t.routes = append(t.routes, r)
	}
	return t, nil
}

// DefaultTable returns the application's fixed route table.
func DefaultTable() *Table {
	t, err := NewTable(
		RouteDescriptor{Pattern: "*", Target: TargetNotFound},
		RouteDescriptor{Pattern: AuthPath, Visibility: Public, Target: TargetAuth},
		RouteDescriptor{Pattern: "/share/:token", Visibility: TokenScoped, Target: TargetDoctorView},
		RouteDescriptor{Pattern: "/", Visibility: Protected, Target: TargetDashboard},
		RouteDescriptor{Pattern: "/vitals", Visibility: Protected, Target: TargetVitals},
		RouteDescriptor{Pattern: "/medications", Visibility: Protected, Target: TargetMedications},
		RouteDescriptor{Pattern: "/symptoms", Visibility: Protected, Target: TargetSymptoms},
		RouteDescriptor{Pattern: "/records", Visibility: Protected, Target: TargetRecords},
		RouteDescriptor{Pattern: "/share", Visibility: Protected, Target: TargetShare},
		RouteDescriptor{Pattern: "/profile", Visibility: Protected, Target: TargetProfile},
	)
	if err != nil {
		panic(err)
	}
	return t
}

// Routes returns the ordered routes, without the catch-all.
func (t *Table) Routes() []RouteDescriptor {
	out := make([]RouteDescriptor, len(t.routes))
	copy(out, t.routes)
	return out
}

// Resolve returns the first route whose pattern matches p, or the catch-all.
// It accepts any string, including malformed ones.
func (t *Table) Resolve(p string) Match {
	parts, ok := split(p)
	if ok {
		for _, r := range t.routes {
			if params, hit := r.match(parts); hit {
				return Match{Route: r, Params: params}
			}
		}
	}
	return Match{Route: t.fallback, Params: map[string]string{}}
}

func (r RouteDescriptor) match(parts []string) (map[string]string, bool) {
	if len(parts) != len(r.segments) {
		return nil, false
	}
	params := map[string]string{}
	for i, seg := range r.segments {
		switch {
		case seg.param != "":
			if parts[i] == "" {
				return nil, false
			}
			params[seg.param] = parts[i]
		case seg.literal != parts[i]:
			return nil, false
		}
	}
	return params, true
}

func compile(pattern string) ([]segment, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("pattern must start with '/'")
	}
	if pattern == "/" {
		return []segment{}, nil
	}
	raw := strings.Split(strings.TrimPrefix(pattern, "/"), "/")
	segs := make([]segment, 0, len(raw))
	seen := map[string]bool{}
	for _, s := range raw {
		switch {
		case s == "":
			return nil, fmt.Errorf("empty segment")
		case strings.HasPrefix(s, ":"):
			name := s[1:]
			if name == "" || seen[name] {
				return nil, fmt.Errorf("bad parameter %q", s)
			}
			seen[name] = true
			segs = append(segs, segment{param: name})
		default:
			segs = append(segs, segment{literal: s})
		}
	}
	return segs, nil
}

// split normalises p and returns its unescaped segments. "/" yields none.
// ok is false when p cannot be a path at all.
func split(p string) ([]string, bool) {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		p = "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = path.Clean(p)
	if p == "/" {
		return []string{}, true
	}
	raw := strings.Split(strings.TrimPrefix(p, "/"), "/")
	parts := make([]string, len(raw))
	for i, s := range raw {
		u, err := url.PathUnescape(s)
		if err != nil || strings.ContainsRune(u, '/') {
			return nil, false
		}
		parts[i] = u
	}
	return parts, true
}
