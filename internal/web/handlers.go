package web

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"WhatsappLinker/internal/delivery"
	"WhatsappLinker/internal/pairing"
)

const codeWait = 30 * time.Second

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>WhatsApp Linker</title></head>
<body>
<h1>Link a WhatsApp account</h1>
<form method="POST" action="/pair">
  <label>Phone number <input name="phone" placeholder="+15551234567"></label>
  <label><input type="checkbox" name="qr" value="1"> use QR instead</label>
  <button type="submit">Start</button>
</form>
<p>POST /pair returns JSON with the attempt id; poll /status?attempt=ID and
fetch /result?attempt=ID once it reports linked.</p>
</body>
</html>
`))

type pairRequest struct {
	Phone string `json:"phone"`
	QR    bool   `json:"qr"`
}

type pairResponse struct {
	Attempt string `json:"attempt"`
	State   string `json:"state"`
	Code    string `json:"code,omitempty"`
	QRURL   string `json:"qr_url,omitempty"`
}

type statusResponse struct {
	Attempt string `json:"attempt"`
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := indexTemplate.Execute(w, nil); err != nil {
		log.Printf("web: render index: %v", err)
	}
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var phone string
	var useQR bool
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req pairRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		phone, useQR = req.Phone, req.QR
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		phone = r.PostFormValue("phone")
		useQR = r.PostFormValue("qr") != ""
	}

	var (
		attempt *pairing.Attempt
		err     error
	)
	if useQR {
		// Anonymous QR requests are keyed on the client host so repeat
		// submissions from the same machine hit the in-flight guard.
		owner := remoteHost(r.RemoteAddr)
		if phone != "" {
			if normalized, nerr := pairing.NormalizePhone(phone); nerr == nil {
				owner = normalized
			}
		}
		attempt, err = s.Orchestrator.BeginQR(owner)
	} else {
		// The owner key is the canonical phone spelling, so "+1555..."
		// and "1555..." count as the same requester.
		normalized, nerr := pairing.NormalizePhone(phone)
		if nerr != nil {
			http.Error(w, "invalid phone number", http.StatusBadRequest)
			return
		}
		attempt, err = s.Orchestrator.Begin(normalized, normalized)
	}
	switch {
	case errors.Is(err, pairing.ErrInvalidPhone):
		http.Error(w, "invalid phone number", http.StatusBadRequest)
		return
	case errors.Is(err, pairing.ErrAttemptInFlight):
		http.Error(w, "an attempt for this requester is already running", http.StatusConflict)
		return
	case err != nil:
		log.Printf("web: begin attempt: %v", err)
		http.Error(w, "could not start attempt", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), codeWait)
	defer cancel()
	code, err := attempt.WaitCode(ctx)
	if err != nil {
		log.Printf("web: attempt %s failed before issuing a code: %v", attempt.ID, err)
		http.Error(w, "linking failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	resp := pairResponse{Attempt: attempt.ID, State: attempt.State().String()}
	if useQR {
		resp.QRURL = "/qr?attempt=" + attempt.ID
	} else {
		resp.Code = code
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleQR renders the attempt's current QR payload as a PNG.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	attempt, ok := s.lookupAttempt(w, r)
	if !ok {
		return
	}
	payload := attempt.Code()
	if payload == "" {
		http.Error(w, "no QR payload yet", http.StatusNotFound)
		return
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		log.Printf("web: encode QR for %s: %v", attempt.ID, err)
		http.Error(w, "could not render QR", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	attempt, ok := s.lookupAttempt(w, r)
	if !ok {
		return
	}
	resp := statusResponse{Attempt: attempt.ID, State: attempt.State().String()}
	if err := attempt.Err(); err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleResult hands out the base64 session blob once the attempt is
// linked; the attempt is exported and released on first retrieval.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	attempt, ok := s.lookupAttempt(w, r)
	if !ok {
		return
	}
	if attempt.State() != pairing.StateLinked {
		http.Error(w, "attempt is not linked", http.StatusConflict)
		return
	}
	if attempt.Released() {
		http.Error(w, "session already retrieved", http.StatusGone)
		return
	}

	if err := s.Orchestrator.Export(r.Context(), attempt); err != nil {
		// Durability deferred; the response blob still carries everything.
		log.Printf("web: export attempt %s: %v", attempt.ID, err)
	}

	archive, err := delivery.ArchiveDir(attempt.WorkDir())
	if err != nil {
		log.Printf("web: archive attempt %s: %v", attempt.ID, err)
		http.Error(w, "packaging the session failed", http.StatusInternalServerError)
		return
	}
	attempt.Cancel()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(delivery.EncodeForTransport(archive)))
}

func (s *Server) lookupAttempt(w http.ResponseWriter, r *http.Request) (*pairing.Attempt, bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}
	id := r.URL.Query().Get("attempt")
	if id == "" {
		http.Error(w, "missing attempt parameter", http.StatusBadRequest)
		return nil, false
	}
	attempt, ok := s.Orchestrator.AttemptByID(id)
	if !ok {
		http.Error(w, "unknown attempt", http.StatusNotFound)
		return nil, false
	}
	return attempt, true
}

// remoteHost strips the ephemeral port from a client address.
func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: write response: %v", err)
	}
}
