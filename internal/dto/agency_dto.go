package dto

import "github.com/google/uuid"

type AgencySearchRequest struct {
	Query string `json:"query" validate:"required,min=1,max=1000"`
	Level string `json:"preferredLevel" validate:"omitempty,oneof=city state federal unknown"`
}

type AgencyMatch struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Level            string    `json:"level"`
	Description      string    `json:"description"`
	Website          string    `json:"website"`
	Phone            string    `json:"phone"`
	Email            string    `json:"email"`
	Confidence       int       `json:"confidence"`
	Reasoning        string    `json:"reasoning"`
	MatchedComplaint string    `json:"matched_complaint,omitempty"`
}

type AgencySearchResponse struct {
	Results []AgencyMatch `json:"results"`
	Message string        `json:"message,omitempty"`
	Cached  bool          `json:"cached"`
}

type ProcessDocumentRequest struct {
	FileURL      string `json:"fileUrl" validate:"required,url"`
	FileName     string `json:"fileName" validate:"required,max=300"`
	DocumentType string `json:"documentType" validate:"required,max=100"`
}

type ProcessDocumentResponse struct {
	DocumentType string `json:"documentType"`
	Lines        int    `json:"lines"`
	URLCount     int    `json:"urlCount"`
	MappedTitles int    `json:"mappedTitles"`
	Confidence   string `json:"confidence"`
}
