package domain

type Role string

const (
	RoleUser  Role = "user"
	RoleTeam  Role = "team"
	RoleAdmin Role = "admin"
)

// MaxUsernameLength bounds usernames at key issuance.
const MaxUsernameLength = 16

// Rank orders roles user < team < admin. Roles match exactly; anything
// else, including a differently cased name, ranks as user.
func (r Role) Rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleTeam:
		return 2
	default:
		return 1
	}
}

// Satisfies reports whether r is at least as privileged as required.
func (r Role) Satisfies(required Role) bool {
	return r.Rank() >= required.Rank()
}

// Identity is the principal resolved from an API key.
type Identity struct {
	Username string
	Key      string
	Role     Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
