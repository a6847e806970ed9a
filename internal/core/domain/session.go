package domain

// Session is a read-only snapshot of who is signed in for one visitor.
// CurrentUser is non-nil iff the identity service vouched for a session.
type Session struct {
	CurrentUser *User
	IsLoading   bool
	LastError   error
}

// Authenticated reports whether the snapshot carries a settled signed-in user.
func (s Session) Authenticated() bool {
	return !s.IsLoading && s.CurrentUser != nil
}
