package model

import "time"

type Message struct {
	ID       string    `json:"id"`
	Room     string    `json:"room"`
	Owner    string    `json:"owner"`
	Username string    `json:"username,omitempty"`
	Text     string    `json:"text"`
	PostedAt time.Time `json:"posted"`
}

type File struct {
	ID         string    `json:"id"`
	Room       string    `json:"room"`
	Owner      string    `json:"owner"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Size       int64     `json:"size"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploaded"`
}
