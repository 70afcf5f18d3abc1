package main

import (
	"time"

	"github.com/google/uuid"

	"github.com/liamcoop/fatechart/fate"
	"github.com/liamcoop/fatechart/internal/archive"
	"github.com/liamcoop/fatechart/internal/logger"
	"github.com/liamcoop/fatechart/internal/reference"
	"github.com/liamcoop/fatechart/rules"
)

// API request and response models

// CreateReportRequest is the birth moment to chart.
type CreateReportRequest struct {
	Name  string `json:"name" example:"王小明"`
	Year  int    `json:"year" example:"1990"`
	Month int    `json:"month" example:"1"`
	Day   int    `json:"day" example:"1"`
	Hour  string `json:"hour" example:"子時 (23:00-01:00)"`
} // @name CreateReportRequest

func (r CreateReportRequest) moment() fate.BirthMoment {
	return fate.BirthMoment{Name: r.Name, Year: r.Year, Month: r.Month, Day: r.Day, Hour: r.Hour}
}

// ReportResponse is one archived report.
type ReportResponse struct {
	ID        uuid.UUID    `json:"id" example:"123e4567-e89b-12d3-a456-426614174000"`
	CreatedAt time.Time    `json:"createdAt" example:"2024-01-15T10:30:00Z"`
	Report    *fate.Report `json:"report"`
} // @name ReportResponse

func newReportResponse(rec *archive.Record) ReportResponse {
	return ReportResponse{ID: rec.ID, CreatedAt: rec.CreatedAt, Report: rec.Report}
}

// RulesResponse explains the archetype choice for an archived report.
// ArchivedArchetype is what the report recorded; Archetype is what the current
// rule set selects.
type RulesResponse struct {
	ReportID          uuid.UUID           `json:"reportId"`
	ArchivedArchetype reference.Archetype `json:"archivedArchetype"`
	*fate.Explanation
}

// RuleResponse is a single archetype rule evaluated for an archived report.
type RuleResponse struct {
	ReportID uuid.UUID            `json:"reportId"`
	Rule     fate.RuleExplanation `json:"rule"`
}

// ReportsListResponse is the newest-first list of archived reports.
type ReportsListResponse struct {
	Reports []archive.Summary `json:"reports"`
	Count   int               `json:"count"`
} // @name ReportsListResponse

// QuestionRequest is a follow-up question about a report.
type QuestionRequest struct {
	Question string `json:"question" example:"今年適合換工作嗎？"`
} // @name QuestionRequest

// QuestionResponse carries the advisor's answer.
type QuestionResponse struct {
	ReportID uuid.UUID `json:"reportId"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
} // @name QuestionResponse

// HoursResponse lists the accepted hour labels.
type HoursResponse struct {
	Hours   []string `json:"hours"`
	Unknown string   `json:"unknown" example:"不詳"`
} // @name HoursResponse

// HealthResponse reports readiness.
type HealthResponse struct {
	Status       string `json:"status" example:"healthy"`
	RulesVersion int    `json:"rulesVersion" example:"1"`
	Advisor      bool   `json:"advisor"`
} // @name HealthResponse

// StatsResponse exposes the process counters.
type StatsResponse struct {
	Counters     logger.Stats     `json:"counters"`
	RuleCache    rules.CacheStats `json:"ruleCache"`
	RulesVersion int              `json:"rulesVersion"`
} // @name StatsResponse

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error" example:"invalid birth moment"`
	Details string `json:"details,omitempty" example:"invalid day: 1990-02 has no day 30"`
	Field   string `json:"field,omitempty" example:"day"`
} // @name ErrorResponse
