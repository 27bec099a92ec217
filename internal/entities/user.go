package entities

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
}

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)
