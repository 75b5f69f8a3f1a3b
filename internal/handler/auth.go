package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/panphy/labassistant/internal/i18n"
)

const teacherCookieName = "teacher_session"

type loginRequest struct {
	Password string `json:"password"`
}

func (h *Handler) handleTeacherLogin(w http.ResponseWriter, r *http.Request) {
	if !h.config.Features.TeacherAuth {
		respondError(w, http.StatusServiceUnavailable, appI18n.T(r.Context(), "DashboardDisabled"))
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	hash, err := h.store.TeacherPasswordHash()
	if err != nil {
		slog.Error("load teacher password hash", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "LoginInvalid"))
		return
	}

	token, err := h.store.CreateAuthSession()
	if err != nil {
		slog.Error("create auth session", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     teacherCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTeacherLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(teacherCookieName); err == nil && cookie.Value != "" {
		if err := h.store.DeleteAuthSession(cookie.Value); err != nil {
			slog.Warn("delete auth session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     teacherCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

// requireTeacher gates the dashboard endpoints behind a live auth session.
func (h *Handler) requireTeacher(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(teacherCookieName)
		if err != nil || cookie.Value == "" {
			respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "LoginRequired"))
			return
		}
		sess, err := h.store.GetAuthSession(cookie.Value)
		if err != nil {
			slog.Error("get auth session", "error", err)
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if sess == nil {
			respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "LoginRequired"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
