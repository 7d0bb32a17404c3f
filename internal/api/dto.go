package api

import (
	"github.com/starford/quire/internal/contentservice"
	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/models"
)

// DocumentItem is a lightweight item in a list response (aliased from the domain layer).
type DocumentItem = contentservice.DocumentItem

// DocumentDetail is the full document response type (aliased from the domain layer).
type DocumentDetail = contentservice.DocumentDetail

// DocumentListResponse wraps document listings.
type DocumentListResponse struct {
	Documents []DocumentItem `json:"documents" validate:"required"`
	Total     int            `json:"total" example:"42" validate:"required"`
}

// BrokenLinksResponse wraps the broken links of the latest run.
type BrokenLinksResponse struct {
	Links []models.CrossReference `json:"links" validate:"required"`
}

// BacklinksResponse lists the permalinks linking to a target.
type BacklinksResponse struct {
	Target    string   `json:"target" example:"/about" validate:"required"`
	Backlinks []string `json:"backlinks" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// RunsResponse wraps run history.
type RunsResponse struct {
	Runs []index.RunRow `json:"runs" validate:"required"`
}
