package invoice

import (
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/invoiceai/invoice-ledger/internal/extraction"
)

// maxUploadSize caps multipart uploads; high-resolution phone photos of
// receipts run large.
const maxUploadSize = int64(50 << 20)

func respondJSON(w http.ResponseWriter, status int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// handleListInvoices returns the read model: the collection plus whether the
// initial refresh is still pending.
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"invoices": s.service.Invoices(),
		"loading":  s.service.Loading(),
	})
}

// handleAddInvoice commits a reviewed record. A remote sync failure is not
// fatal: the record is saved locally and the response carries a warning.
func (s *Server) handleAddInvoice(w http.ResponseWriter, r *http.Request) {
	var inv Invoice
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid invoice body")
		return
	}
	if inv.ID == "" {
		inv.ID = s.idGenerator.Generate()
	}

	saved, err := s.service.AddInvoice(r.Context(), inv)
	if err != nil {
		slog.Warn("Invoice saved locally but remote sync failed", "id", saved.ID, "error", err)
		respondJSON(w, http.StatusAccepted, map[string]any{
			"invoice": saved,
			"warning": "Remote sync failed; the invoice was saved locally. " + err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"invoice": saved})
}

// handleUpdateInvoice applies an edit. On remote failure the edit has been
// reverted and the caller should retry.
func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	var inv Invoice
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid invoice body")
		return
	}
	inv.ID = r.PathValue("id")

	if err := s.service.UpdateInvoice(r.Context(), inv); err != nil {
		slog.Error("Update rejected", "id", inv.ID, "error", err)
		respondError(w, http.StatusBadGateway, "The edit was not accepted by the remote store and has been reverted. Please retry. "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"invoices": s.service.Invoices()})
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteInvoice(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleRefresh re-pulls the authoritative collection. A fetch failure keeps
// the cached collection, so the response still carries invoices.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{}
	if err := s.service.Refresh(r.Context()); err != nil {
		slog.Warn("Refresh failed, serving cached collection", "error", err)
		body["warning"] = err.Error()
	}
	body["invoices"] = s.service.Invoices()
	body["loading"] = s.service.Loading()
	respondJSON(w, http.StatusOK, body)
}

// handleExtract accepts a multipart form with either a "text" field or one or
// more "files" parts, never both, and returns review-ready parsed records.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		message := "Error parsing form"
		if err.Error() == "http: request body too large" {
			message = "Upload is too large. Maximum size is 50MB."
		}
		respondError(w, http.StatusBadRequest, message)
		return
	}

	text := strings.TrimSpace(r.FormValue("text"))
	var files []*multipartFile
	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["files"] {
			files = append(files, &multipartFile{header: header})
		}
	}

	if text != "" && len(files) > 0 {
		respondError(w, http.StatusBadRequest, "Provide text or files, not both")
		return
	}
	if text == "" && len(files) == 0 {
		respondError(w, http.StatusBadRequest, "No input provided. Upload files or submit text to parse.")
		return
	}

	hints := s.service.RecentVendors(8)
	now := s.timeSource.Now()

	if text != "" {
		res, err := s.extractor.Extract(r.Context(), extraction.Request{
			Text:        text,
			VendorHints: hints,
			Today:       now,
		})
		if err != nil {
			slog.Error("Extraction failed", "error", err)
			respondError(w, http.StatusBadGateway, err.Error())
			return
		}
		inv := FromExtraction(res, s.idGenerator.Generate(), "Text/Voice Input", now)
		respondJSON(w, http.StatusOK, map[string]any{"invoices": []Invoice{inv}})
		return
	}

	parsed := make([]Invoice, 0, len(files))
	failed := map[string]string{}
	var lastErr string
	for _, file := range files {
		att, err := file.read()
		if err != nil {
			slog.Error("Error reading upload", "filename", file.header.Filename, "error", err)
			failed[file.header.Filename] = "could not read upload"
			continue
		}
		res, err := s.extractor.Extract(r.Context(), extraction.Request{
			Files:       []extraction.Attachment{att},
			VendorHints: hints,
			Today:       now,
		})
		if err != nil {
			slog.Error("Extraction failed", "filename", att.Name, "error", err)
			failed[att.Name] = err.Error()
			lastErr = err.Error()
			continue
		}
		parsed = append(parsed, FromExtraction(res, s.idGenerator.Generate(), att.Name, now))
	}

	if len(parsed) == 0 {
		respondError(w, http.StatusBadGateway, lastErr)
		return
	}
	body := map[string]any{"invoices": parsed}
	if len(failed) > 0 {
		body["failed"] = failed
	}
	respondJSON(w, http.StatusOK, body)
}

// multipartFile defers reading an upload until extraction needs it.
type multipartFile struct {
	header *multipart.FileHeader
}

func (f *multipartFile) read() (extraction.Attachment, error) {
	src, err := f.header.Open()
	if err != nil {
		return extraction.Attachment{}, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return extraction.Attachment{}, err
	}

	contentType := f.header.Header.Get("Content-Type")
	if contentType == "" {
		switch strings.ToLower(filepath.Ext(f.header.Filename)) {
		case ".jpg", ".jpeg":
			contentType = "image/jpeg"
		case ".png":
			contentType = "image/png"
		case ".gif":
			contentType = "image/gif"
		case ".pdf":
			contentType = "application/pdf"
		case ".heic", ".heif":
			contentType = "image/heic"
		case ".txt":
			contentType = "text/plain"
		}
	}

	return extraction.Attachment{
		Name: f.header.Filename,
		MIME: contentType,
		Data: data,
	}, nil
}
