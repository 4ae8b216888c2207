package models

import "time"

// DesignRequest is a custom artwork request submitted from the storefront.
type DesignRequest struct {
	Name        string `form:"name" validate:"required"`
	Email       string `form:"email" validate:"required,email"`
	Phone       string `form:"phone"`
	Size        string `form:"size"`
	DateOfBirth string `form:"date_of_birth"`
	ZodiacSign  string `form:"zodiac_sign"`
	Address     string `form:"address" validate:"required"`
	Idea        string `form:"idea"`
	OrderRef    string `form:"order_ref"`
}

// UploadedImage describes one inspiration image. Error is set when the upload
// failed; the request itself still succeeds.
type UploadedImage struct {
	FileName string `json:"file_name"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// DesignSubmission is a DesignRequest plus its upload outcomes.
type DesignSubmission struct {
	Request     DesignRequest
	Images      []UploadedImage
	SubmittedAt time.Time
}
