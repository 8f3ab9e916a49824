package api

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Abhi-vish/financial-insights-ai/internal/auth"
	"github.com/Abhi-vish/financial-insights-ai/internal/config"
	"github.com/Abhi-vish/financial-insights-ai/internal/dataset"
	"github.com/Abhi-vish/financial-insights-ai/internal/ingest"
	"github.com/Abhi-vish/financial-insights-ai/internal/session"
	"github.com/Abhi-vish/financial-insights-ai/internal/storage"
)

type uploadResponse struct {
	SessionID string           `json:"session_id"`
	Filename  string           `json:"filename"`
	RowCount  int              `json:"row_count"`
	Columns   []dataset.Column `json:"columns"`
}

func handleUpload(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if cfg.Upload.MaxFileSizeBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.Upload.MaxFileSizeBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(ctx, w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "uploaded file exceeds the size limit", false, map[string]any{
				"limit_bytes": cfg.Upload.MaxFileSizeBytes,
			})
			return
		}
		writeError(ctx, w, http.StatusBadRequest, "INVALID_UPLOAD", "multipart form field \"file\" is required", false, nil)
		return
	}
	defer func() { _ = file.Close() }()

	format, err := storage.FormatForFilename(header.Filename)
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, "UNSUPPORTED_FORMAT", err.Error(), false, nil)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(ctx, w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "uploaded file exceeds the size limit", false, map[string]any{
				"limit_bytes": cfg.Upload.MaxFileSizeBytes,
			})
			return
		}
		writeError(ctx, w, http.StatusBadRequest, "INVALID_UPLOAD", "failed to read uploaded file", false, nil)
		return
	}

	opts := ingest.Options{MaxRows: cfg.Upload.MaxRows, SampleValues: cfg.Upload.SampleValues}
	var ds *dataset.Dataset
	switch format {
	case storage.FormatCSV:
		ds, err = ingest.ReadCSV(bytes.NewReader(data), opts)
	case storage.FormatParquet:
		ds, err = ingest.ReadParquet(bytes.NewReader(data), int64(len(data)), opts)
	}
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrEmptyDataset):
			writeError(ctx, w, http.StatusBadRequest, "EMPTY_DATASET", "the uploaded file contains no data rows", false, nil)
		case errors.Is(err, ingest.ErrTooManyRows):
			writeError(ctx, w, http.StatusRequestEntityTooLarge, "DATASET_TOO_LARGE", "the uploaded file has more rows than the service accepts", false, map[string]any{
				"limit_rows": cfg.Upload.MaxRows,
			})
		default:
			writeError(ctx, w, http.StatusBadRequest, "MALFORMED_FILE", err.Error(), false, nil)
		}
		return
	}

	id, err := session.NewID()
	if err != nil {
		writeError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to allocate a session id", true, nil)
		return
	}
	objectPath, err := storage.BuildDatasetFilePath(id, format)
	if err != nil {
		writeError(ctx, w, http.StatusInternalServerError, "INTERNAL", err.Error(), false, nil)
		return
	}

	if _, err := deps.ObjectStore.Put(ctx, objectPath, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: contentTypeFor(format)}); err != nil {
		if deps.Logger != nil {
			deps.Logger.ErrorContext(ctx, "upload storage write failed", slog.String("object_path", objectPath), slog.Any("error", err))
		}
		writeError(ctx, w, http.StatusBadGateway, "STORAGE_UNAVAILABLE", "failed to store the uploaded file", true, nil)
		return
	}

	sess := &session.Session{
		ID:         id,
		Filename:   header.Filename,
		Format:     format,
		ObjectPath: objectPath,
		RowCount:   ds.RowCount(),
		Dataset:    ds,
		Summary:    dataset.Summarize(ds),
	}
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		sess.Tenant = identity.TenantID
	}
	if err := deps.Sessions.Create(ctx, sess); err != nil {
		if deps.Logger != nil {
			deps.Logger.ErrorContext(ctx, "session create failed", slog.String("session_id", id), slog.Any("error", err))
		}
		writeError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to register the session", true, nil)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		SessionID: sess.ID,
		Filename:  sess.Filename,
		RowCount:  sess.RowCount,
		Columns:   ds.Schema.Columns,
	})
}

func contentTypeFor(format storage.DatasetFormat) string {
	if format == storage.FormatCSV {
		return "text/csv"
	}
	return "application/octet-stream"
}
