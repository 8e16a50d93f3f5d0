package http

import (
	"time"

	"github.com/vadimbarashkov/short-link/internal/entity"
)

// shortenRequest is the body of POST /shorten.
type shortenRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// createdLinkResponse is returned on creation. It carries no counters.
type createdLinkResponse struct {
	Code        string    `json:"code"`
	OriginalURL string    `json:"originalUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toCreatedLinkResponse(link *entity.ShortLink) createdLinkResponse {
	return createdLinkResponse{
		Code:        link.Code,
		OriginalURL: link.OriginalURL,
		CreatedAt:   link.CreatedAt,
	}
}

// linkResponse is returned by expand and stats.
type linkResponse struct {
	Code           string     `json:"code"`
	OriginalURL    string     `json:"originalUrl"`
	VisitCount     int64      `json:"visitCount"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastAccessedAt *time.Time `json:"lastAccessedAt"`
}

func toLinkResponse(link *entity.ShortLink) linkResponse {
	return linkResponse{
		Code:           link.Code,
		OriginalURL:    link.OriginalURL,
		VisitCount:     link.VisitCount,
		CreatedAt:      link.CreatedAt,
		LastAccessedAt: link.LastAccessedAt,
	}
}

type deletedLinkResponse struct {
	Code    string `json:"code"`
	Deleted bool   `json:"deleted"`
}

type healthResponse struct {
	Success   bool      `json:"success"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
