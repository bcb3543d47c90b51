package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/metrolabs/equiptrack/internal/core/domain"
	"github.com/metrolabs/equiptrack/internal/httpclient"
)

// ImportExportAPI covers bulk spreadsheet import and export of the
// equipment register, including background import job tracking.
type ImportExportAPI struct {
	client *httpclient.Client
}

// ExportAll downloads the full equipment register.
func (ie *ImportExportAPI) ExportAll(ctx context.Context, dst io.Writer) (string, error) {
	return ie.client.Download(ctx, http.MethodGet, "/api/import/export/all", nil, dst, nil)
}

// ExportFiltered downloads the register rows matching the filters.
func (ie *ImportExportAPI) ExportFiltered(ctx context.Context, filters map[string]any, dst io.Writer) (string, error) {
	return ie.client.Download(ctx, http.MethodPost, "/api/import/export/filtered", filters, dst, nil)
}

// DownloadTemplate downloads the blank import template.
func (ie *ImportExportAPI) DownloadTemplate(ctx context.Context, dst io.Writer) (string, error) {
	return ie.client.Download(ctx, http.MethodGet, "/api/import/template/download", nil, dst, nil)
}

// Upload submits a filled-in spreadsheet and returns the background job
// created for it. The overwrite flag is sent as a form field because the
// server reads it alongside the file part.
func (ie *ImportExportAPI) Upload(ctx context.Context, filename string, file io.Reader, size int64, overwrite bool, progress httpclient.ProgressFunc) (ImportJob, error) {
	fields := map[string]string{"overwrite": fmt.Sprintf("%t", overwrite)}
	raw, err := ie.client.Upload(ctx, "/api/import/upload", filename, file, size, fields, progress)
	if err != nil {
		return ImportJob{}, err
	}
	var job ImportJob
	if len(raw) > 0 {
		if err := decode(raw, &job); err != nil {
			return ImportJob{}, err
		}
	}
	return job, nil
}

// JobStatus returns the current state of a background import job.
func (ie *ImportExportAPI) JobStatus(ctx context.Context, jobID string) (ImportJob, error) {
	var job ImportJob
	err := ie.client.Get(ctx, fmt.Sprintf("/api/imports/excel/%s/status", jobID), &job)
	return job, err
}

// CancelJob asks the server to stop a running import job.
func (ie *ImportExportAPI) CancelJob(ctx context.Context, jobID string) error {
	return ie.client.Post(ctx, fmt.Sprintf("/api/imports/excel/%s/cancel", jobID), nil, nil)
}

// WaitForJob polls the job status until it reaches a terminal state or
// the context ends. onProgress, when non-nil, is called after every poll.
func (ie *ImportExportAPI) WaitForJob(ctx context.Context, jobID string, interval time.Duration, onProgress func(ImportJob)) (ImportJob, error) {
	if interval <= 0 {
		interval = time.Second
	}

	var job ImportJob
	err := retry.Do(
		func() error {
			current, err := ie.JobStatus(ctx, jobID)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			job = current
			if onProgress != nil {
				onProgress(current)
			}
			if !current.Done() {
				return domain.ErrJobRunning
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return job, err
	}
	return job, nil
}
