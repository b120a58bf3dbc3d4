package message

type SendMessageRequest struct {
	Text string `json:"text" binding:"required,max=4096"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
