package ingest

import (
	"context"
	"time"

	"github.com/rs/xid"
)

// scheduledRun is a single scheduled Job run
type scheduledRun struct {
	at    time.Time
	job   Job
	jobID xid.ID
}

// Less is utilized to sort scheduled runs by their due-time (earliest == first)
func (a scheduledRun) Less(b scheduledRun) bool {
	return a.at.Before(b.at)
}

// workerInfo is the work context for the job routine
type workerInfo struct {
	job     Job
	resCh   chan<- *workerResponse
	timeout time.Duration
	jobID   xid.ID
}

// workerResponse is the job routine response
type workerResponse struct {
	error    error         // encountered error, if any
	duration time.Duration // how long the run took
	jobID    xid.ID        // the job ID
}

// handleJob runs the job under its timeout
func handleJob(
	ctx context.Context,
	info *workerInfo,
) {
	runCtx, cancelFn := context.WithTimeout(ctx, info.timeout)
	defer cancelFn()

	started := time.Now()
	err := info.job.Run(runCtx)

	response := &workerResponse{
		error:    err,
		duration: time.Since(started),
		jobID:    info.jobID,
	}

	select {
	case <-ctx.Done():
	case info.resCh <- response:
	}
}
