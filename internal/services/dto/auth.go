package dto

type RegisterRequest struct {
	Handle      string `json:"handle" validate:"required,min=3,max=32,alphanum"`
	DisplayName string `json:"displayName" validate:"required,min=1,max=64"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
	Handle string `json:"handle"`
}
