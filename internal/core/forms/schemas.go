package forms

// Field names shared by the auth forms and the handlers that read them.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldFirstName       = "firstName"
	FieldLastName        = "lastName"
	FieldPhone           = "phone"
)

// Password strength is deliberately limited to non-empty.
var (
	emailField = Field{
		Name:  FieldEmail,
		Label: "Email",
		Rules: "required,email",
		Messages: map[string]string{
			"required": "Email is required",
			"email":    "Please enter a valid email address",
		},
	}
	passwordField = Field{
		Name:     FieldPassword,
		Label:    "Password",
		Rules:    "required",
		Messages: map[string]string{"required": "Password is required"},
	}
)

// LoginSchema validates the sign-in form.
var LoginSchema = Schema{
	Name:   "login",
	Fields: []Field{emailField, passwordField},
}

// RegisterSchema validates the sign-up form, including the confirmation field.
var RegisterSchema = Schema{
	Name: "register",
	Fields: []Field{
		{
			Name:     FieldFirstName,
			Label:    "First name",
			Rules:    "required",
			Messages: map[string]string{"required": "First name is required"},
		},
		{
			Name:     FieldLastName,
			Label:    "Last name",
			Rules:    "required",
			Messages: map[string]string{"required": "Last name is required"},
		},
		emailField,
		{Name: FieldPhone, Label: "Phone number"},
		passwordField,
		{
			Name:     FieldConfirmPassword,
			Label:    "Confirm password",
			Rules:    "required",
			Messages: map[string]string{"required": "Please confirm your password"},
		},
	},
	Cross: []CrossRule{
		{Field: FieldConfirmPassword, Other: FieldPassword, Rule: "eqcsfield", Message: "Passwords don't match"},
	},
}

// Lookup returns the schema with the given name.
func Lookup(name string) (Schema, bool) {
	switch name {
	case LoginSchema.Name:
		return LoginSchema, true
	case RegisterSchema.Name:
		return RegisterSchema, true
	}
	return Schema{}, false
}
