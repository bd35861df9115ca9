package model

// User represents a back-office user as exposed by the backend.
type User struct {
	ID          ID       `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Area        string   `json:"area,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	CreatedAt   Date     `json:"created_at"`
}
