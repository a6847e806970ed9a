package portal

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"

	"github.com/healthtracker/portal/internal/core/domain"
	"github.com/healthtracker/portal/internal/core/routing"
)

//go:embed templates
var templateFS embed.FS

const (
	viewAuth       = "auth"
	viewLoading    = "loading"
	viewNotFound   = "not_found"
	viewDoctorView = "doctor_view"
	viewSection    = "section"
	viewError      = "error"
)

// layout per view; everything not listed renders inside the app shell.
var standaloneViews = map[string]bool{
	viewAuth:       true,
	viewLoading:    true,
	viewNotFound:   true,
	viewDoctorView: true,
	viewError:      true,
}

type navItem struct {
	Path   string
	Label  string
	Target routing.Target
}

var appNav = []navItem{
	{"/", "Dashboard", routing.TargetDashboard},
	{"/vitals", "Vitals", routing.TargetVitals},
	{"/medications", "Medications", routing.TargetMedications},
	{"/symptoms", "Symptoms", routing.TargetSymptoms},
	{"/records", "Records", routing.TargetRecords},
	{"/share", "Share", routing.TargetShare},
	{"/profile", "Profile", routing.TargetProfile},
}

var sectionTitles = map[routing.Target]string{
	routing.TargetDashboard:   "Dashboard",
	routing.TargetVitals:      "Vitals",
	routing.TargetMedications: "Medications",
	routing.TargetSymptoms:    "Symptoms",
	routing.TargetRecords:     "Medical Records",
	routing.TargetShare:       "Share with Doctor",
	routing.TargetProfile:     "Profile",
}

// viewData is the single model every template renders from.
type viewData struct {
	Title  string
	User   *domain.User
	Nav    []navItem
	Active routing.Target

	Mode     string
	Values   map[string]string
	Errors   map[string]string
	Banner   string
	Notice   string
	Remember bool

	ShareToken string
}

type fieldView struct {
	Name        string
	Label       string
	Type        string
	Placeholder string
	Value       string
	Error       string
}

// Views renders the embedded templates for echo.
type Views struct {
	pages map[string]*template.Template
}

var _ echo.Renderer = (*Views)(nil)

func NewViews() (*Views, error) {
	funcs := template.FuncMap{
		"field": func(d viewData, name, label, typ, placeholder string) fieldView {
			return fieldView{
				Name:        name,
				Label:       label,
				Type:        typ,
				Placeholder: placeholder,
				Value:       d.Values[name],
				Error:       d.Errors[name],
			}
		},
	}

	names := []string{viewAuth, viewLoading, viewNotFound, viewDoctorView, viewSection, viewError}
	v := &Views{pages: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		layout := "templates/app_layout.html"
		if standaloneViews[name] {
			layout = "templates/standalone.html"
		}
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/base.html",
			layout,
			"templates/pages/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parse view %s: %w", name, err)
		}
		v.pages[name] = t
	}
	return v, nil
}

func (v *Views) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	t, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("unknown view %q", name)
	}
	return t.ExecuteTemplate(w, "base", data)
}
