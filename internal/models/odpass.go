package models

import "time"

// ODPass is an On-Duty pass application with its supporting documents.
type ODPass struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Status       string             `json:"status"`
	Date         string             `json:"date"`
	Documents    []string           `json:"documents"`
	MentorName   string             `json:"mentor_name,omitempty"`
	ApprovalDate string             `json:"approval_date,omitempty"`
	Analyses     []DocumentAnalysis `json:"analyses,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// DocumentAnalysis is the AI report for a single uploaded document.
type DocumentAnalysis struct {
	IsValid            bool     `json:"is_valid"`
	DetectedSignatures []string `json:"detected_signatures"`
	DocumentType       string   `json:"document_type"`
	Summary            string   `json:"summary"`
}
