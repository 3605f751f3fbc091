package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"ward-discharge/internal/domain"
)

const (
	headerUserID      = "X-User-Id"
	headerUserName    = "X-User-Name"
	headerUserSurname = "X-User-Surname"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// staffFromHeaders reads the acting staff member set by the gateway.
func staffFromHeaders(r *http.Request) (domain.StaffIdentity, bool) {
	s := domain.StaffIdentity{
		ID:      strings.TrimSpace(r.Header.Get(headerUserID)),
		Name:    strings.TrimSpace(r.Header.Get(headerUserName)),
		Surname: strings.TrimSpace(r.Header.Get(headerUserSurname)),
	}
	return s, s.ID != ""
}

func queryBool(r *http.Request, key string) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
