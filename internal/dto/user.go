package dto

// CreateUserRequest is the admin payload for registering a user.
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=admin user"`
}

// ResetPasswordRequest is the admin payload for resetting a user password.
type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

// CreateGrantRequest delegates a capability on a form to the user
// identified by email.
type CreateGrantRequest struct {
	FormID     string `json:"form" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Capability string `json:"permission_type" validate:"required,oneof=edit view_responses"`
}
