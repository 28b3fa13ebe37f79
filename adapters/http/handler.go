// Package sheethttp exposes the templating service over HTTP.
//
// Template uploads are raw XLSX bodies; exports take a JSON payload and
// answer with the rendered document.
package sheethttp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	errorslib "github.com/goliatone/go-errors"
	"github.com/goliatone/go-sheetfill/sheetfill"
)

// DefaultMaxUploadBytes caps template upload bodies.
const DefaultMaxUploadBytes int64 = 8 * 1024 * 1024

// Config configures the HTTP handler.
type Config struct {
	Service        sheetfill.Service
	Logger         sheetfill.Logger
	MaxUploadBytes int64
}

// Handler serves the admin template and export endpoints.
type Handler struct {
	service   sheetfill.Service
	logger    sheetfill.Logger
	maxUpload int64
	mux       *http.ServeMux
}

// NewHandler builds the route table.
func NewHandler(cfg Config) *Handler {
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	h := &Handler{
		service:   cfg.Service,
		logger:    cfg.Logger,
		maxUpload: maxUpload,
		mux:       http.NewServeMux(),
	}
	h.mux.HandleFunc("PUT /admin/templates/{key}", h.uploadTemplate)
	h.mux.HandleFunc("GET /admin/templates/{key}/issues", h.templateIssues)
	h.mux.HandleFunc("DELETE /admin/templates/{key}", h.deleteTemplate)
	h.mux.HandleFunc("POST /admin/exports", h.export)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		writeError(w, sheetfill.NewError(sheetfill.KindInternal, "service not configured", nil))
		return
	}
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) uploadTemplate(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxUpload+1))
	if err != nil {
		writeError(w, sheetfill.NewError(sheetfill.KindInternal, "read upload body", err))
		return
	}
	if int64(len(body)) > h.maxUpload {
		writeError(w, sheetfill.NewError(sheetfill.KindValidation, "template upload exceeds size limit", nil))
		return
	}

	tpl := sheetfill.Template{
		Key:         key,
		Name:        r.URL.Query().Get("name"),
		Orientation: sheetfill.Orientation(r.URL.Query().Get("orientation")),
		Data:        body,
	}
	issues, err := h.service.UploadTemplate(r.Context(), tpl)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issuesPayload{Key: key, Issues: issueDTOs(issues)})
}

func (h *Handler) templateIssues(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	issues, err := h.service.TemplateIssues(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issuesPayload{Key: key, Issues: issueDTOs(issues)})
}

func (h *Handler) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTemplate(r.Context(), r.PathValue("key")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, sheetfill.NewError(sheetfill.KindValidation, "invalid export payload", err))
		return
	}
	if req.TemplateKey == "" {
		writeError(w, sheetfill.NewError(sheetfill.KindValidation, "template_key is required", nil))
		return
	}

	student, err := req.Student.toStudent()
	if err != nil {
		writeError(w, err)
		return
	}
	doc, err := h.service.Export(r.Context(), req.TemplateKey, student)
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("export %s failed: %v", req.TemplateKey, err)
		}
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(doc.Bytes)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Bytes)
}

type issuesPayload struct {
	Key    string     `json:"key"`
	Issues []issueDTO `json:"issues"`
}

type issueDTO struct {
	Message  string `json:"message"`
	Advisory bool   `json:"advisory"`
}

func issueDTOs(issues []sheetfill.Issue) []issueDTO {
	out := make([]issueDTO, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issueDTO{Message: issue.Message, Advisory: issue.Advisory})
	}
	return out
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func writeError(w http.ResponseWriter, err error) {
	ge := sheetfill.AsGoError(err)
	writeJSON(w, statusForError(ge), errorResponse{
		Error: errorBody{Message: ge.Message, Code: ge.TextCode},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func statusForError(err *errorslib.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	switch err.TextCode {
	case "pool_exhausted":
		return http.StatusServiceUnavailable
	case "renderer_timeout":
		return http.StatusGatewayTimeout
	case "renderer_crashed":
		return http.StatusBadGateway
	}
	switch err.Category {
	case errorslib.CategoryValidation:
		return http.StatusBadRequest
	case errorslib.CategoryAuthz:
		return http.StatusForbidden
	case errorslib.CategoryNotFound:
		return http.StatusNotFound
	case errorslib.CategoryOperation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type exportRequest struct {
	TemplateKey string     `json:"template_key"`
	Student     studentDTO `json:"student"`
}

type studentDTO struct {
	StudentNo      string            `json:"student_no"`
	Name           string            `json:"name"`
	Gender         string            `json:"gender"`
	Grade          string            `json:"grade"`
	ClassName      string            `json:"class_name"`
	Major          string            `json:"major"`
	College        string            `json:"college"`
	FirstSignPath  string            `json:"first_sign_path,omitempty"`
	SecondSignPath string            `json:"second_sign_path,omitempty"`
	Custom         map[string]string `json:"custom,omitempty"`
	Awards         []awardDTO        `json:"awards"`
}

type awardDTO struct {
	Year         string            `json:"year"`
	Category     string            `json:"category"`
	ContestName  string            `json:"contest_name"`
	Level        string            `json:"level"`
	Role         string            `json:"role"`
	AwardTier    string            `json:"award_tier"`
	AwardDate    string            `json:"award_date,omitempty"`
	SelfHours    float64           `json:"self_hours"`
	FirstHours   float64           `json:"first_hours"`
	SecondHours  float64           `json:"second_hours"`
	Status       string            `json:"status"`
	RejectReason string            `json:"reject_reason,omitempty"`
	Custom       map[string]string `json:"custom,omitempty"`
}

func (d studentDTO) toStudent() (sheetfill.Student, error) {
	student := sheetfill.Student{
		StudentNo:      d.StudentNo,
		Name:           d.Name,
		Gender:         d.Gender,
		Grade:          d.Grade,
		ClassName:      d.ClassName,
		Major:          d.Major,
		College:        d.College,
		FirstSignPath:  d.FirstSignPath,
		SecondSignPath: d.SecondSignPath,
		Custom:         d.Custom,
	}
	for _, a := range d.Awards {
		award := sheetfill.Award{
			Year:         a.Year,
			Category:     a.Category,
			ContestName:  a.ContestName,
			Level:        a.Level,
			Role:         a.Role,
			AwardTier:    a.AwardTier,
			SelfHours:    a.SelfHours,
			FirstHours:   a.FirstHours,
			SecondHours:  a.SecondHours,
			Status:       a.Status,
			RejectReason: a.RejectReason,
			Custom:       a.Custom,
		}
		if a.AwardDate != "" {
			awarded, err := time.Parse("2006-01-02", a.AwardDate)
			if err != nil {
				return sheetfill.Student{}, sheetfill.NewError(sheetfill.KindValidation, fmt.Sprintf("invalid award_date %q", a.AwardDate), err)
			}
			award.AwardedOn = awarded
		}
		student.Awards = append(student.Awards, award)
	}
	return student, nil
}
