package models

import "io"

type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}
