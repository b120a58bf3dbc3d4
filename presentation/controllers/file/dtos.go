package file

// CreateFileRequest registers a file that has already been uploaded to
// storage.
type CreateFileRequest struct {
	Name string `json:"name" binding:"required,max=255"`
	Type string `json:"type" binding:"omitempty,max=127"`
	Size int64  `json:"size" binding:"gte=0"`
	URL  string `json:"url" binding:"required,url"`
	Post bool   `json:"post"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
