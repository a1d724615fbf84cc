package api

import (
	"github.com/samcharles93/glbopt/internal/optimize"
	"github.com/samcharles93/glbopt/internal/version"
)

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
}

type ErrorResponse struct {
	Error     ResponseError `json:"error"`
	RequestID string        `json:"request_id,omitempty"`
}

type ReportResponse struct {
	ID        string           `json:"id"`
	Object    string           `json:"object"`
	CreatedAt int64            `json:"created_at"`
	Report    *optimize.Report `json:"report"`
}

type InspectResponse struct {
	Object string `json:"object"`
	*optimize.Inspection
}

type HealthResponse struct {
	Status  string       `json:"status"`
	Version version.Info `json:"version"`
}
