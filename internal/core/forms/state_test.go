package forms

import "testing"

func TestState_ErrorsHiddenUntilTouched(t *testing.T) {
	s := NewState(LoginSchema, nil)
	if s.Ready() {
		t.Fatalf("empty form must not be ready")
	}
	if len(s.Visible()) != 0 {
		t.Fatalf("untouched form must not show errors, got %+v", s.Visible())
	}

	s.Touch(FieldEmail)
	s.Change(FieldEmail, "nope")
	vis := s.Visible()
	if vis[FieldEmail] == "" {
		t.Fatalf("touched email must show its error")
	}
	if _, ok := vis[FieldPassword]; ok {
		t.Fatalf("untouched password must stay quiet")
	}
}

func TestState_RevalidatesOnChange(t *testing.T) {
	s := NewState(LoginSchema, Values{FieldEmail: "a@b.com"})
	s.Touch(FieldPassword)
	if s.Visible()[FieldPassword] == "" {
		t.Fatalf("expected password error")
	}

	s.Change(FieldPassword, "x")
	if !s.Ready() || len(s.Visible()) != 0 {
		t.Fatalf("expected ready form, got %+v", s.Result())
	}
}

func TestState_SubmitBlockedWhileInvalid(t *testing.T) {
	s := NewState(RegisterSchema, Values{
		FieldFirstName:       "John",
		FieldLastName:        "Doe",
		FieldEmail:           "john@example.com",
		FieldPassword:        "Secret123",
		FieldConfirmPassword: "Secret124",
	})
	if s.Submit() {
		t.Fatalf("submit must be blocked on mismatch")
	}
	if s.Visible()[FieldConfirmPassword] != "Passwords don't match" {
		t.Fatalf("submit must reveal all errors, got %+v", s.Visible())
	}

	s.Change(FieldConfirmPassword, "Secret123")
	if !s.Submit() {
		t.Fatalf("submit must pass once fixed, got %+v", s.Result())
	}
	if s.Value(FieldConfirmPassword) != "Secret123" {
		t.Fatalf("value not kept")
	}
}
