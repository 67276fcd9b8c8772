package model

import "time"

// RunStatus is the lifecycle state of a SyncRun.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// CrawlOutcome distinguishes a finished listing crawl from one cut short.
type CrawlOutcome string

const (
	CrawlExhausted CrawlOutcome = "exhausted"
	CrawlAborted   CrawlOutcome = "aborted"
)

// SyncRun records one orchestrated crawl/sync/process run.
type SyncRun struct {
	ID                 string       `json:"id" yaml:"id"`
	Status             RunStatus    `json:"status" yaml:"status"`
	StartedAt          time.Time    `json:"started_at" yaml:"started_at"`
	CompletedAt        *time.Time   `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	CrawlOutcome       CrawlOutcome `json:"crawl_outcome,omitempty" yaml:"crawl_outcome,omitempty"`
	RecordsCrawled     int          `json:"records_crawled" yaml:"records_crawled"`
	RecordsNew         int          `json:"records_new" yaml:"records_new"`
	ArtifactsSucceeded int          `json:"artifacts_succeeded" yaml:"artifacts_succeeded"`
	ArtifactsFailed    int          `json:"artifacts_failed" yaml:"artifacts_failed"`
	Error              string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// RunCounts carries the figures written when a run completes.
type RunCounts struct {
	CrawlOutcome       CrawlOutcome
	RecordsCrawled     int
	RecordsNew         int
	ArtifactsSucceeded int
	ArtifactsFailed    int
}
