package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"vidstitch/internal/fileset"
	"vidstitch/internal/jobs"
	"vidstitch/internal/logging"
	"vidstitch/internal/session"
)

// Handler serves the session over HTTP.
type Handler struct {
	sess      *session.Session
	uploadDir string
	logger    *slog.Logger
}

// NewHandler creates a handler storing uploads under uploadDir.
func NewHandler(sess *session.Session, uploadDir string, logger *slog.Logger) *Handler {
	return &Handler{
		sess:      sess,
		uploadDir: uploadDir,
		logger:    logging.WithComponent(logger, "api"),
	}
}

type fileResponse struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	SizeBytes       int64    `json:"sizeBytes"`
	DurationSeconds *float64 `json:"durationSeconds"`
	ThumbnailPath   *string  `json:"thumbnailPath"`
	Position        int      `json:"position"`
}

type addResponse struct {
	Added    []fileResponse `json:"added"`
	Rejected []struct {
		Path  string `json:"path"`
		Error string `json:"error"`
	} `json:"rejected"`
}

type jobResponse struct {
	ID              int64   `json:"id"`
	OutputName      string  `json:"outputName"`
	InputCount      int     `json:"inputCount"`
	Status          string  `json:"status"`
	ProgressPhase   string  `json:"progressPhase"`
	ProgressPercent float64 `json:"progressPercent"`
	ProgressMessage string  `json:"progressMessage"`
	ErrorMessage    string  `json:"errorMessage,omitempty"`
	ResultPath      string  `json:"resultPath,omitempty"`
	ResultSize      int64   `json:"resultSize,omitempty"`
}

func toFileResponse(entry fileset.Entry, position int) fileResponse {
	return fileResponse{
		ID:              entry.ID,
		Name:            entry.DisplayName,
		SizeBytes:       entry.SizeBytes,
		DurationSeconds: entry.DurationSeconds,
		ThumbnailPath:   entry.ThumbnailPath,
		Position:        position,
	}
}

func toJobResponse(job *jobs.Job) jobResponse {
	return jobResponse{
		ID:              job.ID,
		OutputName:      job.OutputName,
		InputCount:      job.InputCount,
		Status:          string(job.Status),
		ProgressPhase:   job.ProgressPhase,
		ProgressPercent: job.ProgressPercent,
		ProgressMessage: job.ProgressMessage,
		ErrorMessage:    job.ErrorMessage,
		ResultPath:      job.ResultPath,
		ResultSize:      job.ResultSize,
	}
}

// HandleHealth returns server health and job counts.
func (h *Handler) HandleHealth(c echo.Context) error {
	summary, err := h.sess.Health(c.Request().Context())
	if err != nil {
		return NewInternalError("health check failed", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"total":     summary.Total,
		"active":    summary.Active,
		"completed": summary.Completed,
		"failed":    summary.Failed,
	})
}

// HandleListFiles returns the ordered file set.
func (h *Handler) HandleListFiles(c echo.Context) error {
	entries := h.sess.Entries()
	out := make([]fileResponse, 0, len(entries))
	for i, entry := range entries {
		out = append(out, toFileResponse(entry, i))
	}
	return c.JSON(http.StatusOK, out)
}

// HandleAddPaths adds files already on the server's filesystem.
func (h *Handler) HandleAddPaths(c echo.Context) error {
	var req struct {
		Paths []string `json:"paths"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if len(req.Paths) == 0 {
		return NewBadRequestError("paths is empty", nil)
	}
	return h.respondAdd(c, h.sess.AddPaths(c.Request().Context(), req.Paths))
}

// HandleUploadBinary accepts a multipart file upload, persists it under the
// upload directory, and appends it to the set.
func (h *Handler) HandleUploadBinary(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return NewInternalError("failed to prepare upload directory", err)
	}
	name := filepath.Base(file.Filename)
	dst := filepath.Join(h.uploadDir, strconv.FormatInt(time.Now().UnixNano(), 36)+"-"+name)
	out, err := os.Create(dst)
	if err != nil {
		return NewInternalError("failed to persist upload", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return NewInternalError("failed to persist upload", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return NewInternalError("failed to persist upload", err)
	}
	h.logger.Debug("upload stored",
		logging.String("name", name),
		logging.String("path", dst))

	results := h.sess.AddPaths(c.Request().Context(), []string{dst})
	if len(results) == 1 && results[0].Err != nil {
		_ = os.Remove(dst)
	}
	return h.respondAdd(c, results)
}

func (h *Handler) respondAdd(c echo.Context, results []session.AddResult) error {
	entries := h.sess.Entries()
	positions := make(map[string]int, len(entries))
	byID := make(map[string]fileset.Entry, len(entries))
	for i, entry := range entries {
		positions[entry.ID] = i
		byID[entry.ID] = entry
	}

	var resp addResponse
	resp.Added = []fileResponse{}
	for _, result := range results {
		if result.Err != nil {
			resp.Rejected = append(resp.Rejected, struct {
				Path  string `json:"path"`
				Error string `json:"error"`
			}{Path: result.SourcePath, Error: result.Err.Error()})
			continue
		}
		if entry, ok := byID[result.EntryID]; ok {
			resp.Added = append(resp.Added, toFileResponse(entry, positions[entry.ID]))
		}
	}

	status := http.StatusCreated
	if len(resp.Added) == 0 {
		status = http.StatusUnprocessableEntity
	}
	return c.JSON(status, resp)
}

// HandleDeleteFile removes one entry by id.
func (h *Handler) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if !h.sess.Remove(id) {
		return NewNotFoundError("file", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleReorder replaces the ordering with the supplied id permutation.
func (h *Handler) HandleReorder(c echo.Context) error {
	var req struct {
		Order []string `json:"order"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := h.sess.Reorder(req.Order); err != nil {
		return err
	}
	return h.HandleListFiles(c)
}

// HandleClearFiles empties the set.
func (h *Handler) HandleClearFiles(c echo.Context) error {
	h.sess.Clear()
	return c.NoContent(http.StatusNoContent)
}

// HandleMerge kicks off a merge of the current order. The merge slot is
// claimed before replying, so a concurrent request gets the in-flight
// conflict instead of a second "started". The pipeline itself runs in the
// background; clients poll the active job for progress.
func (h *Handler) HandleMerge(c echo.Context) error {
	if count := h.sess.Count(); count < 2 {
		return &APIError{
			Status:  http.StatusBadRequest,
			Code:    "INSUFFICIENT_INPUT",
			Message: "need at least 2 files to merge, have " + strconv.Itoa(count),
		}
	}

	if err := h.sess.MergeAsync(context.Background()); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}

// HandleListJobs returns every job recorded this session.
func (h *Handler) HandleListJobs(c echo.Context) error {
	list, err := h.sess.Jobs(c.Request().Context())
	if err != nil {
		return NewInternalError("job listing failed", err)
	}
	out := make([]jobResponse, 0, len(list))
	for _, job := range list {
		out = append(out, toJobResponse(job))
	}
	return c.JSON(http.StatusOK, out)
}

// HandleActiveJob returns the in-flight job, or 404 when idle.
func (h *Handler) HandleActiveJob(c echo.Context) error {
	job, err := h.sess.ActiveJob(c.Request().Context())
	if err != nil {
		return NewInternalError("job lookup failed", err)
	}
	if job == nil {
		return NewNotFoundError("active job", "none")
	}
	return c.JSON(http.StatusOK, toJobResponse(job))
}

// HandleGetJob returns one job by id.
func (h *Handler) HandleGetJob(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return NewBadRequestError("invalid job id", err)
	}
	job, err := h.sess.Job(c.Request().Context(), id)
	if err != nil {
		return NewInternalError("job lookup failed", err)
	}
	if job == nil {
		return NewNotFoundError("job", c.Param("id"))
	}
	return c.JSON(http.StatusOK, toJobResponse(job))
}

// HandleDownload streams a completed job's output file.
func (h *Handler) HandleDownload(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return NewBadRequestError("invalid job id", err)
	}
	job, err := h.sess.Job(c.Request().Context(), id)
	if err != nil {
		return NewInternalError("job lookup failed", err)
	}
	if job == nil {
		return NewNotFoundError("job", c.Param("id"))
	}
	if job.Status != jobs.StatusCompleted || job.ResultPath == "" {
		return NewConflictError("job has no completed output")
	}
	return c.Attachment(job.ResultPath, job.OutputName)
}

// HandleReset returns the session to its initial empty state.
func (h *Handler) HandleReset(c echo.Context) error {
	if err := h.sess.Reset(c.Request().Context()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
