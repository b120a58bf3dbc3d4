package account

import "github.com/hilthontt/letschat/domain/model"

type LoginRequest struct {
	Username string `json:"username" binding:"required,max=20"`
}

type LoginResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    *model.User `json:"user"`
}

// ProfileRequest fields left empty keep their current value.
type ProfileRequest struct {
	Username    string `json:"username" binding:"omitempty,min=3,max=20"`
	DisplayName string `json:"displayName" binding:"omitempty,max=50"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
