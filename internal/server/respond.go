package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/koustreak/askdb/internal/errs"
)

const maxBodyBytes = 1 << 20

type failure struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeFailure answers with {success:false, message}. Error messages are
// passed through verbatim so the client sees the database's own wording.
func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, failure{Success: false, Message: message})
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeFailure(w, status, errs.Message(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// intParam reads a positive integer query parameter, falling back to def
// when it is absent.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errs.New(errs.ErrKindInvalidInput, name+" must be a positive integer")
	}
	return n, nil
}

// flexPort accepts a port as a JSON number or a numeric string, the way HTML
// form values usually arrive.
type flexPort int

func (p *flexPort) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return errs.New(errs.ErrKindInvalidInput, "port must be a number")
	}
	*p = flexPort(n)
	return nil
}
