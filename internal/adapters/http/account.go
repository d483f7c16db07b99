package httpadapter

import (
	"net/http"
	"strings"
)

type credentialRequest struct {
	APIKey string `json:"api_key"`
}

func (rt *Router) getCredential(w http.ResponseWriter, r *http.Request) {
	value, ok, err := rt.credential.GetCredential(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"configured": ok,
		"masked":     maskCredential(value),
	})
}

func (rt *Router) setCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := decodeJSONBody(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if err := rt.credential.SetCredential(r.Context(), req.APIKey); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// validateCredential checks the candidate in the body, or the stored
// credential when the body names none.
func (rt *Router) validateCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if r.ContentLength != 0 {
		if err := decodeJSONBody(r, &req); err != nil {
			rt.writeError(w, r, err)
			return
		}
	}

	candidate := strings.TrimSpace(req.APIKey)
	if candidate == "" {
		stored, _, err := rt.credential.GetCredential(r.Context())
		if err != nil {
			rt.writeError(w, r, err)
			return
		}
		candidate = stored
	}
	writeJSON(w, http.StatusOK, map[string]bool{
		"valid": rt.credential.ValidateCredential(r.Context(), candidate),
	})
}

func (rt *Router) activateCamera(w http.ResponseWriter, r *http.Request) {
	if err := rt.lifecycle.ActivateCamera(r.Context()); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) getSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"active": rt.session.Active()})
}

func (rt *Router) login(w http.ResponseWriter, r *http.Request) {
	rt.session.Login(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"active": rt.session.Active()})
}

func (rt *Router) logout(w http.ResponseWriter, r *http.Request) {
	rt.session.Logout(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"active": rt.session.Active()})
}

func maskCredential(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}
