package domain

import "time"

// RunStatus classifies the outcome of one monitoring cycle
type RunStatus string

const (
	RunSuccess RunStatus = "success" // all new items delivered, or none existed
	RunPartial RunStatus = "partial" // new items discovered but dispatch failed
	RunError   RunStatus = "error"   // extraction or mandatory auth failed
)

// RunStats holds the result of a single monitoring cycle. RunOnce always
// returns one, even on total failure.
type RunStats struct {
	ArticlesFound     int
	NewArticles       int
	NotificationsSent int
	Status            RunStatus
	ErrorMessage      string
	ExecutionTime     time.Duration
}

// MonitoringRun is the persisted audit record of one cycle, append-only
type MonitoringRun struct {
	ID                   int64
	CheckTime            time.Time
	ArticlesFound        int
	NewArticles          int
	Status               string
	ErrorMessage         string
	ExecutionTimeSeconds float64
}

// Stats aggregates monitoring runs over a trailing window
type Stats struct {
	TotalRuns        int
	SuccessfulRuns   int
	SuccessRate      float64
	TotalNewArticles int
	AvgExecutionTime float64
	LastCheck        time.Time
}
