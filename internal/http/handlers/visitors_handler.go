package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/diagnosis/visitor-desk/internal/domain"
	"github.com/diagnosis/visitor-desk/internal/export"
	"github.com/diagnosis/visitor-desk/internal/http/middleware"
	"github.com/diagnosis/visitor-desk/internal/http/response"
	"github.com/diagnosis/visitor-desk/internal/platform/photo"
	"github.com/diagnosis/visitor-desk/internal/service"
	"github.com/diagnosis/visitor-desk/internal/utils"
	"github.com/diagnosis/visitor-desk/pkg/logger"
	"github.com/go-chi/chi/v5"
)

const maxListLimit = 500

type VisitorHandler struct {
	Service service.VisitorService
	// PublicBaseURL prefixes photo URLs; empty means derive it from the request.
	PublicBaseURL string
	MaxBodyBytes  int64
	Location      *time.Location

	RequireAuth  func(http.Handler) http.Handler
	OptionalAuth func(http.Handler) http.Handler
	Idempotency  func(http.Handler) http.Handler
}

func (h *VisitorHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(orPassthrough(h.OptionalAuth))
		r.Use(orPassthrough(h.Idempotency))
		r.Post("/", h.checkIn)
	})

	r.Group(func(r chi.Router) {
		r.Use(orPassthrough(h.RequireAuth))
		r.Get("/", h.list)
		r.Get("/export", h.export)
		r.Get("/{id}", h.getByID)
		r.Post("/{id}/checkout", h.checkout)
	})
	return r
}

func (h *VisitorHandler) checkIn(w http.ResponseWriter, r *http.Request) {
	if h.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)
	}

	var (
		in  domain.CheckInRequest
		err error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = h.decodeMultipart(r, &in)
	} else {
		err = json.NewDecoder(r.Body).Decode(&in)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large", response.CodePayloadTooLarge)
			return
		}
		logger.WarnContext(r.Context(), "Invalid check-in body", "error", err)
		response.BadRequest(w, "invalid request body")
		return
	}

	v, err := h.Service.CheckIn(r.Context(), &in, middleware.ActorFrom(r.Context()))
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.JSON(w, http.StatusCreated, v.ToDTO(h.resolver(r)))
}

func (h *VisitorHandler) decodeMultipart(r *http.Request, in *domain.CheckInRequest) error {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return err
	}
	in.Name = r.FormValue("name")
	in.Phone = r.FormValue("phone")
	in.Address = r.FormValue("address")
	in.Purpose = r.FormValue("purpose")
	in.Company = r.FormValue("company")
	in.PersonToMeet = r.FormValue("personToMeet")
	in.Photo = r.FormValue("photo")

	file, _, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	in.PhotoData = data
	return nil
}

func (h *VisitorHandler) checkout(w http.ResponseWriter, r *http.Request) {
	v, err := h.Service.CheckOut(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.JSON(w, http.StatusOK, domain.CheckoutResponse{ID: v.ID, CheckoutTime: *v.CheckoutTime})
}

func (h *VisitorHandler) getByID(w http.ResponseWriter, r *http.Request) {
	v, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.JSON(w, http.StatusOK, v.ToDTO(h.resolver(r)))
}

func (h *VisitorHandler) list(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseListQuery(r)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	vs, err := h.Service.List(r.Context(), q)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.JSON(w, http.StatusOK, h.toDTOs(r, vs))
}

func (h *VisitorHandler) export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	q, err := h.parseListQuery(r)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	q.Limit, q.Offset = 0, 0

	vs, err := h.Service.List(r.Context(), q)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, h.toDTOs(r, vs), h.location()); err != nil {
		logger.ErrorContext(r.Context(), "Failed to render export", "format", format, "error", err)
		response.InternalError(w, "failed to render export")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.Filename(time.Now().In(h.location()))+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
	logger.InfoContext(r.Context(), "Visitors exported", "format", format, "rows", len(vs))
}

// parseListQuery reads from, to, q, status, limit and offset. Bounds accept
// epoch seconds, epoch milliseconds or a date string in the report location.
func (h *VisitorHandler) parseListQuery(r *http.Request) (domain.ListQuery, error) {
	params := r.URL.Query()
	q := domain.ListQuery{
		Search: params.Get("q"),
		Limit:  domain.Clamp(utils.QueryInt(params.Get("limit"), 0), 0, maxListLimit),
		Offset: max(utils.QueryInt(params.Get("offset"), 0), 0),
	}

	for name, dst := range map[string]**int64{"from": &q.From, "to": &q.To} {
		raw := params.Get(name)
		if raw == "" {
			continue
		}
		n, err := domain.NormalizeTimestampIn(raw, h.location())
		if err != nil {
			return q, domain.NewValidationError(name, "invalid "+name+" timestamp")
		}
		*dst = &n
	}

	if s := params.Get("status"); s != "" {
		status, ok := domain.ParseVisitorStatus(s)
		if !ok {
			return q, domain.NewValidationError("status", "status must be 'checked_in' or 'checked_out'")
		}
		q.Status = status
	}
	return q, nil
}

func (h *VisitorHandler) toDTOs(r *http.Request, vs []domain.Visitor) []domain.VisitorDTO {
	resolve := h.resolver(r)
	out := make([]domain.VisitorDTO, 0, len(vs))
	for i := range vs {
		out = append(out, vs[i].ToDTO(resolve))
	}
	return out
}

func (h *VisitorHandler) resolver(r *http.Request) func(string) *string {
	base := h.PublicBaseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return func(ref string) *string { return photo.ResolveURL(base, ref) }
}

func (h *VisitorHandler) location() *time.Location {
	if h.Location == nil {
		return time.Local
	}
	return h.Location
}

func orPassthrough(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return mw
}
