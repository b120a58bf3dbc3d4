package room

type CreateRoomRequest struct {
	Name        string `json:"name" binding:"required,max=60"`
	Slug        string `json:"slug" binding:"omitempty,max=60"`
	Description string `json:"description" binding:"omitempty,max=500"`
	Private     bool   `json:"private"`
	Password    string `json:"password" binding:"omitempty,max=128"`
}

// UpdateRoomRequest leaves absent fields unchanged. An empty password
// removes the room's password.
type UpdateRoomRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=60"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	Password    *string `json:"password" binding:"omitempty,max=128"`
}

type JoinRoomRequest struct {
	Password string `json:"password"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
