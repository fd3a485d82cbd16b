package model

import "time"

// File is the metadata of an uploaded blob. Owner is the uploader; read and
// write access still come from a set of that owner whose cards reference
// the file id.
type File struct {
	ID           string    `json:"id"`
	Owner        string    `json:"owner"`
	OriginalName string    `json:"originalName"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
}
