package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/diagnosis/visitor-desk/internal/domain"
	"github.com/diagnosis/visitor-desk/internal/http/middleware"
	"github.com/diagnosis/visitor-desk/internal/http/response"
	"github.com/diagnosis/visitor-desk/internal/service"
	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	Service service.AuthService

	RequireAuth  func(http.Handler) http.Handler
	OTPRateLimit func(http.Handler) http.Handler
}

func NewAuthHandler(svc service.AuthService, requireAuth, otpRateLimit func(http.Handler) http.Handler) *AuthHandler {
	return &AuthHandler{Service: svc, RequireAuth: requireAuth, OTPRateLimit: otpRateLimit}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.login)
	r.With(orPassthrough(h.OTPRateLimit)).Post("/otp/request", h.requestOTP)
	r.Post("/otp/verify", h.verifyOTP)

	r.Group(func(r chi.Router) {
		r.Use(orPassthrough(h.RequireAuth))
		r.With(middleware.RequireMethod(domain.AuthMethodPassword)).Post("/users", h.createUser)
		r.Get("/me", h.me)
	})
	return r
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var in domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}
	session, err := h.Service.Login(r.Context(), &in)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.JSON(w, http.StatusOK, session)
}

func (h *AuthHandler) requestOTP(w http.ResponseWriter, r *http.Request) {
	var in domain.OTPRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}
	out, err := h.Service.RequestOTP(r.Context(), &in)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.JSON(w, http.StatusOK, out)
}

func (h *AuthHandler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var in domain.OTPVerify
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}
	session, err := h.Service.VerifyOTP(r.Context(), &in)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.JSON(w, http.StatusOK, session)
}

func (h *AuthHandler) createUser(w http.ResponseWriter, r *http.Request) {
	var in domain.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}
	u, err := h.Service.CreateUser(r.Context(), &in)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.JSON(w, http.StatusCreated, u)
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFrom(r.Context())
	if actor == nil {
		response.Unauthorized(w, "not authenticated")
		return
	}
	response.JSON(w, http.StatusOK, actor)
}
