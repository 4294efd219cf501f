package models

// Role represents a user's access level as reported by the backend.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User carries the identity returned by the backend on login,
// registration and token verification.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Role  Role   `json:"role"`
}

// IsAdmin reports whether the user may reach the admin views.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// AuthState is the session's authentication snapshot. Invariant: Token
// is non-empty if and only if IsAuthenticated is true and User is set.
type AuthState struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	User            *User  `json:"user"`
	Token           string `json:"-"`
}

// Unauthenticated returns the cleared auth state.
func Unauthenticated() AuthState {
	return AuthState{}
}

// Authenticated builds a consistent authenticated state.
func Authenticated(user *User, token string) AuthState {
	return AuthState{
		IsAuthenticated: true,
		User:            user,
		Token:           token,
	}
}

// Consistent reports whether the tri-state invariant holds.
func (a AuthState) Consistent() bool {
	if a.IsAuthenticated {
		return a.User != nil && a.Token != ""
	}
	return a.User == nil && a.Token == ""
}
