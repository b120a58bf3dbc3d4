package users

// ListRequest mirrors the query string of GET /users. A zero Take returns
// everything after Skip.
type ListRequest struct {
	IsActive bool `form:"isActive"`
	Skip     int  `form:"skip" binding:"omitempty,gte=0"`
	Take     int  `form:"take" binding:"omitempty,gte=0,lte=500"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
