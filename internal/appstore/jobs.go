package appstore

import "time"

// RetryState carries a job's bounded attempts-and-backoff policy. This
// layer protects against queue/broker and storage transience; it is
// independent of, and coarser than, the connector-tier retries inside
// the fallback executor.
type RetryState struct {
	Attempt     int           `json:"attempt"`
	MaxAttempts int           `json:"max_attempts"`
	Backoff     time.Duration `json:"backoff"`
	Exponential bool          `json:"exponential"`
}

// Exhausted reports whether the job has no attempts left.
func (r RetryState) Exhausted() bool {
	return r.Attempt >= r.MaxAttempts
}

// Next returns the state for the redelivered attempt and the delay to
// wait before it.
func (r RetryState) Next() (RetryState, time.Duration) {
	delay := r.Backoff
	if r.Exponential {
		for i := 0; i < r.Attempt; i++ {
			delay *= 2
		}
	}
	next := r
	next.Attempt++
	return next, delay
}

// DiscoveryJob asks for one ranked listing of a chart or category.
type DiscoveryJob struct {
	ID          string      `json:"id"`
	Marketplace Marketplace `json:"marketplace"`
	Country     string      `json:"country"`
	ChartToken  string      `json:"chart_token"`
	Limit       int         `json:"limit"`
	Retry       RetryState  `json:"retry"`
}

// RetryInfo returns the job's retry state.
func (j DiscoveryJob) RetryInfo() RetryState { return j.Retry }

// WithRetry returns a copy carrying the given retry state.
func (j DiscoveryJob) WithRetry(r RetryState) DiscoveryJob {
	j.Retry = r
	return j
}

// DetailJob asks for a full record fetch of one discovered app.
type DetailJob struct {
	ID          string      `json:"id"`
	Marketplace Marketplace `json:"marketplace"`
	AppID       string      `json:"app_id"`
	Country     string      `json:"country"`
	Rank        int         `json:"rank"`
	ChartToken  string      `json:"chart_token"`
	Source      string      `json:"source"`
	Retry       RetryState  `json:"retry"`
}

// RetryInfo returns the job's retry state.
func (j DetailJob) RetryInfo() RetryState { return j.Retry }

// WithRetry returns a copy carrying the given retry state.
func (j DetailJob) WithRetry(r RetryState) DetailJob {
	j.Retry = r
	return j
}

// ReviewJob asks for a paginated review ingestion run for one app.
type ReviewJob struct {
	ID          string      `json:"id"`
	Marketplace Marketplace `json:"marketplace"`
	AppID       string      `json:"app_id"`
	Country     string      `json:"country"`
	MaxPages    int         `json:"max_pages"`
	Retry       RetryState  `json:"retry"`
}

// RetryInfo returns the job's retry state.
func (j ReviewJob) RetryInfo() RetryState { return j.Retry }

// WithRetry returns a copy carrying the given retry state.
func (j ReviewJob) WithRetry(r RetryState) ReviewJob {
	j.Retry = r
	return j
}
