package handler

import (
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/panphy/labassistant/internal/model"
)

const sessionCookieName = "panphy_session"

// sessionCache holds each student session's last marking report. Reports are
// replaced wholesale on every new submission and dropped on explicit reset;
// nothing else is shared between sessions.
type sessionCache struct {
	mu      sync.RWMutex
	reports map[string]model.MarkingReport
}

func newSessionCache() *sessionCache {
	return &sessionCache{reports: make(map[string]model.MarkingReport)}
}

func (c *sessionCache) get(id string) (model.MarkingReport, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	report, ok := c.reports[id]
	return report, ok
}

func (c *sessionCache) set(id string, report model.MarkingReport) {
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports[id] = report
}

func (c *sessionCache) delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.reports, id)
}

// sessionID returns the request's session ID, or "" if no cookie is set.
func (h *Handler) sessionID(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// ensureSession returns the request's session ID, minting a new cookie when
// the request has none.
func (h *Handler) ensureSession(w http.ResponseWriter, r *http.Request) string {
	if sid := h.sessionID(r); sid != "" {
		return sid
	}
	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}
