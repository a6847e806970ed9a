package forms

// State is the form-state of one form instance. Readiness is recomputed on
// every change; errors become visible per field once it is touched, and for
// every field after the first submit attempt.
type State struct {
	schema    Schema
	values    Values
	touched   map[string]bool
	submitted bool
	result    Result
}

// NewState starts a form with initial values (missing fields are empty).
func NewState(schema Schema, initial Values) *State {
	s := &State{
		schema:  schema,
		values:  make(Values, len(schema.Fields)),
		touched: make(map[string]bool),
	}
	for _, name := range schema.FieldNames() {
		s.values[name] = initial[name]
	}
	s.result = Validate(s.schema, s.values)
	return s
}

// Change records a new value for field and revalidates.
func (s *State) Change(field, value string) {
	s.values[field] = value
	s.result = Validate(s.schema, s.values)
}

// Touch marks field as visited, making its error visible.
func (s *State) Touch(field string) {
	s.touched[field] = true
}

// Submit revalidates unconditionally and reports whether the command may be
// issued. It returns false while any field is invalid.
func (s *State) Submit() bool {
	s.submitted = true
	for _, name := range s.schema.FieldNames() {
		s.touched[name] = true
	}
	s.result = Validate(s.schema, s.values)
	return s.result.Valid
}

// Schema returns the schema the form validates against.
func (s *State) Schema() Schema { return s.schema }

// Ready reports whether the current values pass the schema.
func (s *State) Ready() bool { return s.result.Valid }

// Result returns the full validation result, visible or not.
func (s *State) Result() Result { return s.result }

// Value returns the current value of field.
func (s *State) Value(field string) string { return s.values[field] }

// Visible returns the errors of touched fields only.
func (s *State) Visible() map[string]string {
	out := make(map[string]string)
	for field, msg := range s.result.Errors {
		if s.submitted || s.touched[field] {
			out[field] = msg
		}
	}
	return out
}
