package lib

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lovebughq/ladybug"
	"github.com/lovebughq/ladybug/lib/challenge"
	"github.com/lovebughq/ladybug/lib/challenge/challengetest"
	"github.com/lovebughq/ladybug/lib/identity/identitytest"
	"github.com/lovebughq/ladybug/lib/policy"
	"github.com/lovebughq/ladybug/lib/store/memory"
)

const (
	testAnswer = "orange tabby"
	testPolicy = `
clients:
  - name: allow-internal
    action: ALLOW
    remote_addresses:
      - 10.0.0.0/8

  - name: deny-bots
    action: DENY
    user_agent_regex: EvilBot

  - name: challenge-everyone
    action: CHALLENGE
    expression: "true"
    challenge:
      variant: static
`
)

var testSecret = []byte("hunter2hunter2hunter2")

func spawnServer(t *testing.T) (*Server, *identitytest.Fake) {
	t.Helper()

	challenge.Register("static", challengetest.Static{Answer: testAnswer})

	pol, err := policy.ParseConfig(strings.NewReader(testPolicy), "testPolicy.yaml", "static")
	if err != nil {
		t.Fatal(err)
	}

	ids := identitytest.New()

	srv, err := New(Options{
		Policy:      pol,
		Store:       memory.New(t.Context()),
		Identity:    ids,
		HS512Secret: testSecret,
	})
	if err != nil {
		t.Fatal(err)
	}

	return srv, ids
}

func bearer(t *testing.T, user string) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": user,
		"iat": time.Now().Unix(),
		"nbf": time.Now().Add(-time.Minute).Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	if err != nil {
		t.Fatal(err)
	}

	return "Bearer " + token
}

type apiResponse struct {
	Status            string `json:"status"`
	Message           string `json:"message"`
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retryAfterSeconds"`
	Challenge         struct {
		SessionID string          `json:"sessionId"`
		Variant   string          `json:"variant"`
		Step      int             `json:"step"`
		Steps     int             `json:"steps"`
		Display   json.RawMessage `json:"display"`
	} `json:"challenge"`
}

func doJSON(t *testing.T, srv *Server, method, path, user string, body any, mod func(r *http.Request)) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}

	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("X-Real-Ip", "203.0.113.5")
	if user != "" {
		r.Header.Set("Authorization", bearer(t, user))
	}
	if mod != nil {
		mod(r)
	}

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)

	var resp apiResponse
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("can't parse response %q: %v", w.Body.String(), err)
		}
	}

	return w, resp
}

func TestRequireAuth(t *testing.T) {
	srv, _ := spawnServer(t)

	for _, tt := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, ladybug.APIPrefix + "challenge"},
		{http.MethodPost, ladybug.APIPrefix + "answer"},
		{http.MethodGet, ladybug.APIPrefix + "status"},
	} {
		t.Run(tt.path, func(t *testing.T) {
			w, _ := doJSON(t, srv, tt.method, tt.path, "", nil, nil)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestChallengeFlow(t *testing.T) {
	srv, ids := spawnServer(t)

	w, resp := doJSON(t, srv, http.MethodPost, ladybug.APIPrefix+"challenge", "user-1", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d (challenge status code)", w.Code, http.StatusUnauthorized)
	}
	if resp.Status != "challenge" {
		t.Fatalf("status = %q, want challenge", resp.Status)
	}
	if resp.Challenge.Variant != "static" {
		t.Errorf("variant = %q, want static", resp.Challenge.Variant)
	}
	if resp.Challenge.SessionID == "" {
		t.Fatal("no session ID issued")
	}
	if len(resp.Challenge.Display) == 0 {
		t.Error("challenge display payload is empty")
	}

	// the response must never leak the expected answers
	if strings.Contains(w.Body.String(), "answers") {
		t.Errorf("response leaks answers: %s", w.Body.String())
	}

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == ladybug.SessionCookieName && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("no session cookie set")
	}

	w, resp = doJSON(t, srv, http.MethodPost, ladybug.APIPrefix+"answer", "user-1", map[string]string{
		"sessionId": resp.Challenge.SessionID,
		"answer":    testAnswer,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if resp.Status != "verified" {
		t.Errorf("status = %q, want verified", resp.Status)
	}
	if ids.SetCalls != 1 {
		t.Errorf("SetVerifiedFlag called %d times, want 1", ids.SetCalls)
	}

	w, _ = doJSON(t, srv, http.MethodGet, ladybug.APIPrefix+"status", "user-1", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var vs struct {
		Verified bool `json:"verified"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &vs); err != nil {
		t.Fatal(err)
	}
	if !vs.Verified {
		t.Error("user should be verified")
	}
}

func TestWrongAnswerAndCooldown(t *testing.T) {
	srv, _ := spawnServer(t)

	_, resp := doJSON(t, srv, http.MethodPost, ladybug.APIPrefix+"challenge", "user-1", nil, nil)
	sid := resp.Challenge.SessionID

	w, resp := doJSON(t, srv, http.MethodPost, ladybug.APIPrefix+"answer", "user-1", map[string]string{
		"sessionId": sid,
		"answer":    "a lie",
	}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if resp.Status != "wrong" {
		t.Fatalf("status = %q, want wrong", resp.Status)
	}
	if resp.Challenge.SessionID != sid {
		t.Error("session should survive a wrong answer")
	}

	// right answer during the cooldown window is rejected
	w, resp = doJSON(t, srv, http.MethodPost, ladybug.APIPrefix+"answer", "user-1", map[string]string{
		"sessionId": sid,
		"answer":    testAnswer,
	}, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if resp.RetryAfterSeconds <= 0 || resp.RetryAfterSeconds > 60 {
		t.Errorf("retryAfterSeconds = %d, want (0, 60]", resp.RetryAfterSeconds)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestAllowRule(t *testing.T) {
	srv, _ := spawnServer(t)

	w, resp := doJSON(t, srv, http.MethodPost, ladybug.APIPrefix+"challenge", "user-1", nil, func(r *http.Request) {
		r.Header.Set("X-Real-Ip", "10.1.2.3")
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp.Status != "allowed" {
		t.Errorf("status = %q, want allowed", resp.Status)
	}
}

func TestDenyRule(t *testing.T) {
	srv, _ := spawnServer(t)

	w, resp := doJSON(t, srv, http.MethodPost, ladybug.APIPrefix+"challenge", "user-1", nil, func(r *http.Request) {
		r.Header.Set("User-Agent", "EvilBot/1.0")
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if resp.Status != "denied" {
		t.Errorf("status = %q, want denied", resp.Status)
	}
}

func TestSessionsAreNotTransferable(t *testing.T) {
	srv, _ := spawnServer(t)

	_, resp := doJSON(t, srv, http.MethodPost, ladybug.APIPrefix+"challenge", "user-1", nil, nil)

	w, _ := doJSON(t, srv, http.MethodPost, ladybug.APIPrefix+"answer", "user-2", map[string]string{
		"sessionId": resp.Challenge.SessionID,
		"answer":    testAnswer,
	}, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestMissingRealIPIsAnError(t *testing.T) {
	srv, _ := spawnServer(t)

	w, _ := doJSON(t, srv, http.MethodPost, ladybug.APIPrefix+"challenge", "user-1", nil, func(r *http.Request) {
		r.Header.Del("X-Real-Ip")
	})
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
