package handlers

import (
	"net/http"

	"github.com/diagnosis/visitor-desk/internal/domain"
	"github.com/diagnosis/visitor-desk/internal/http/response"
	"github.com/diagnosis/visitor-desk/internal/service"
	"github.com/diagnosis/visitor-desk/internal/utils"
	"github.com/go-chi/chi/v5"
)

type ReportHandler struct {
	Service     service.ReportService
	RequireAuth func(http.Handler) http.Handler
}

func NewReportHandler(svc service.ReportService, requireAuth func(http.Handler) http.Handler) *ReportHandler {
	return &ReportHandler{Service: svc, RequireAuth: requireAuth}
}

func (h *ReportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(orPassthrough(h.RequireAuth))
	r.Get("/daily", h.daily)
	r.Get("/monthly", h.monthly)
	r.Get("/summary", h.summary)
	return r
}

func (h *ReportHandler) daily(w http.ResponseWriter, r *http.Request) {
	days := utils.QueryInt(r.URL.Query().Get("days"), domain.DefaultReportDays)
	days = domain.Clamp(days, domain.MinReportDays, domain.MaxReportDays)

	counts, err := h.Service.DailyCounts(r.Context(), days)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.JSON(w, http.StatusOK, counts)
}

func (h *ReportHandler) monthly(w http.ResponseWriter, r *http.Request) {
	months := utils.QueryInt(r.URL.Query().Get("months"), domain.DefaultReportMonths)
	months = domain.Clamp(months, domain.MinReportMonths, domain.MaxReportMonths)

	counts, err := h.Service.MonthlyCounts(r.Context(), months)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.JSON(w, http.StatusOK, counts)
}

func (h *ReportHandler) summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Service.Summary(r.Context())
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.JSON(w, http.StatusOK, s)
}
