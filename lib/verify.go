// Package lib is the HTTP surface of the verification service. It wires
// policy, challenge sessions, and the verified-flag store into a small JSON
// API that the LoveBug clients drive.
package lib

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lovebughq/ladybug"
	"github.com/lovebughq/ladybug/internal"
	"github.com/lovebughq/ladybug/lib/challenge"
	"github.com/lovebughq/ladybug/lib/localization"
	"github.com/lovebughq/ladybug/lib/policy"
	"github.com/lovebughq/ladybug/lib/session"

	// challenge implementations
	_ "github.com/lovebughq/ladybug/lib/challenge/all"
)

type Server struct {
	mux         *http.ServeMux
	policy      *policy.ParsedConfig
	sessions    *session.Manager
	cookieName  string
	ed25519Priv ed25519.PrivateKey
	ed25519Pub  ed25519.PublicKey
	hs512Secret []byte
	opts        Options
}

func New(opts Options) (*Server, error) {
	if len(opts.ED25519PrivateKey) == 0 && len(opts.HS512Secret) == 0 {
		slog.Debug("signing key not set, generating a new one")
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("lib: can't generate private key: %v", err)
		}
		opts.ED25519PrivateKey = priv
	}

	ladybug.BasePrefix = opts.BasePrefix

	cookieName := ladybug.SessionCookieName
	if opts.CookieName != "" {
		cookieName = opts.CookieName
	}

	if opts.CookieExpiration == 0 {
		opts.CookieExpiration = ladybug.SessionDefaultExpirationTime
	}

	result := &Server{
		policy:      opts.Policy,
		cookieName:  cookieName,
		hs512Secret: opts.HS512Secret,
		opts:        opts,
	}

	if opts.ED25519PrivateKey != nil {
		result.ed25519Priv = opts.ED25519PrivateKey
		result.ed25519Pub = opts.ED25519PrivateKey.Public().(ed25519.PublicKey)
	}

	result.sessions = session.NewManager(session.Options{
		Store:      opts.Store,
		Identity:   opts.Identity,
		Thresholds: opts.Policy.Thresholds,
	})

	mux := http.NewServeMux()

	registerWithPrefix := func(pattern string, handler http.Handler, method string) {
		if method != "" {
			method = method + " " // methods must end with a space to register with them
		}

		basePrefix := strings.TrimSuffix(ladybug.BasePrefix, "/")
		prefix := method + basePrefix

		if !strings.HasPrefix(pattern, "/") {
			pattern = "/" + pattern
		}

		mux.Handle(prefix+pattern, handler)
	}

	registerWithPrefix(ladybug.APIPrefix+"challenge", http.HandlerFunc(result.MakeChallenge), "POST")
	registerWithPrefix(ladybug.APIPrefix+"answer", http.HandlerFunc(result.AnswerChallenge), "POST")
	registerWithPrefix(ladybug.APIPrefix+"status", http.HandlerFunc(result.VerificationStatus), "GET")

	result.mux = mux

	return result, nil
}

// challengeView is the client-facing slice of a session: everything needed
// to render the puzzle and nothing that gives the answer away.
type challengeView struct {
	SessionID string          `json:"sessionId"`
	Variant   string          `json:"variant"`
	Step      int             `json:"step"`
	Steps     int             `json:"steps"`
	Display   json.RawMessage `json:"display"`
}

func viewOf(st *session.State) challengeView {
	return challengeView{
		SessionID: st.ID,
		Variant:   st.Puzzle.Variant,
		Step:      st.Step,
		Steps:     st.Puzzle.Steps,
		Display:   st.Puzzle.Display,
	}
}

// requireUser authenticates the caller from their bearer token and returns
// the LoveBug user ID.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	tokenString, ok := strings.CutPrefix(authz, "Bearer ")
	if !ok || tokenString == "" {
		respondJSON(w, r, http.StatusUnauthorized, map[string]string{"error": "authorization required"})
		return "", false
	}

	claims, err := s.parseJWT(tokenString)
	if err != nil {
		internal.GetRequestLogger(r).Debug("invalid bearer token", "err", err)
		respondJSON(w, r, http.StatusUnauthorized, map[string]string{"error": "authorization required"})
		return "", false
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		respondJSON(w, r, http.StatusUnauthorized, map[string]string{"error": "authorization required"})
		return "", false
	}

	return sub, true
}

// check evaluates the client classification rules and returns the result.
func (s *Server) check(r *http.Request) (policy.CheckResult, *policy.ClientRule, error) {
	host := r.Header.Get("X-Real-Ip")
	if host == "" {
		return policy.CheckResult{}, nil, fmt.Errorf("[misconfiguration] X-Real-Ip header is not set")
	}

	if addr := net.ParseIP(host); addr == nil {
		return policy.CheckResult{}, nil, fmt.Errorf("[misconfiguration] %q is not an IP address", host)
	}

	for _, c := range s.policy.Clients {
		match, err := c.Rules.Check(r)
		if err != nil {
			return policy.CheckResult{}, nil, fmt.Errorf("can't run check %s: %w", c.Name, err)
		}

		if match {
			return policy.CheckResult{
				Name:    "client/" + c.Name,
				Rule:    c.Action,
				Variant: c.Challenge.Variant,
			}, &c, nil
		}
	}

	// nobody gets into LoveBug unverified just because no rule matched
	return policy.CheckResult{
		Name:    "default/challenge",
		Rule:    policy.RuleChallenge,
		Variant: s.policy.DefaultVariant,
	}, nil, nil
}

func (s *Server) MakeChallenge(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)
	localizer := localization.GetLocalizer(r)

	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	cr, rule, err := s.check(r)
	if err != nil {
		lg.Error("check failed", "err", err)
		respondJSON(w, r, http.StatusInternalServerError, map[string]string{"error": "policy misconfiguration, check the logs around \"MakeChallenge\""})
		return
	}

	lg = lg.With("check_result", cr, "user", user)
	policy.Applications.WithLabelValues(cr.Name, string(cr.Rule)).Add(1)

	switch cr.Rule {
	case policy.RuleAllow:
		respondJSON(w, r, http.StatusOK, map[string]string{"status": "allowed"})
		return
	case policy.RuleDeny:
		lg.Info("explicit deny")
		respondJSON(w, r, s.policy.StatusCodes.Deny, map[string]string{
			"status":  "denied",
			"message": localizer.T("denied"),
		})
		return
	}

	if vs, err := s.sessions.Status(r.Context(), user); err == nil && vs.Verified {
		respondJSON(w, r, http.StatusOK, map[string]string{
			"status":  "verified",
			"message": localizer.T("verified"),
		})
		return
	}

	variant := cr.Variant
	if rule != nil && rule.Challenge != nil {
		variant = rule.Challenge.Variant
	}

	st, err := s.sessions.Issue(r.Context(), user, variant)
	if err != nil {
		lg.Error("can't issue challenge", "variant", variant, "err", err)

		status := http.StatusInternalServerError
		if errors.Is(err, challenge.ErrGenerationUnavailable) {
			status = http.StatusServiceUnavailable
		}
		respondJSON(w, r, status, map[string]string{"error": "can't issue challenge"})
		return
	}

	token, err := s.signJWT(jwt.MapClaims{"sid": st.ID, "sub": user})
	if err != nil {
		lg.Error("failed to sign JWT", "err", err)
		respondJSON(w, r, http.StatusInternalServerError, map[string]string{"error": "failed to sign JWT"})
		return
	}

	s.SetCookie(w, CookieOpts{Value: token, Path: cookiePath()})

	lg.Debug("challenge issued", "session", st.ID, "variant", st.Puzzle.Variant)
	respondJSON(w, r, s.policy.StatusCodes.Challenge, struct {
		Status    string        `json:"status"`
		Message   string        `json:"message"`
		Challenge challengeView `json:"challenge"`
	}{
		Status:    "challenge",
		Message:   localizer.T("challenge_issued"),
		Challenge: viewOf(st),
	})
}

type answerRequest struct {
	SessionID string `json:"sessionId"`
	Answer    string `json:"answer"`
}

// sessionID digs the challenge session ID out of the signed cookie, falling
// back to the request body for cookie-less clients.
func (s *Server) sessionID(r *http.Request, req answerRequest) string {
	if ckie, err := r.Cookie(s.cookieName); err == nil {
		if claims, err := s.parseJWT(ckie.Value); err == nil {
			if sid, _ := claims["sid"].(string); sid != "" {
				return sid
			}
		}
	}

	return req.SessionID
}

func (s *Server) AnswerChallenge(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)
	localizer := localization.GetLocalizer(r)

	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, r, http.StatusBadRequest, map[string]string{"error": "can't parse request body"})
		return
	}

	sid := s.sessionID(r, req)
	if sid == "" {
		respondJSON(w, r, http.StatusBadRequest, map[string]string{"error": "no challenge session"})
		return
	}

	lg = lg.With("session", sid, "user", user)

	// sessions are not transferable between users
	if st, err := s.sessions.Get(r.Context(), sid); err == nil && st.UserID != user {
		s.ClearCookie(w, CookieOpts{Path: cookiePath()})
		respondJSON(w, r, http.StatusNotFound, map[string]string{
			"status":  "expired",
			"message": localizer.T("session_expired"),
		})
		return
	}

	st, err := s.sessions.Submit(r.Context(), sid, req.Answer)

	var cdErr *session.CooldownActiveError
	switch {
	case err == nil:
		// fallthrough below

	case errors.As(err, &cdErr):
		w.Header().Set("Retry-After", strconv.Itoa(cdErr.RemainingSeconds()))
		respondJSON(w, r, http.StatusTooManyRequests, struct {
			Status            string `json:"status"`
			Message           string `json:"message"`
			RetryAfterSeconds int    `json:"retryAfterSeconds"`
		}{
			Status:            "cooldown",
			Message:           localizer.Tf("cooldown_wait", map[string]any{"Seconds": cdErr.RemainingSeconds()}),
			RetryAfterSeconds: cdErr.RemainingSeconds(),
		})
		return

	case errors.Is(err, session.ErrWrongAnswer):
		respondJSON(w, r, s.policy.StatusCodes.Challenge, struct {
			Status    string        `json:"status"`
			Message   string        `json:"message"`
			Challenge challengeView `json:"challenge"`
		}{
			Status:    "wrong",
			Message:   localizer.T("wrong_answer"),
			Challenge: viewOf(st),
		})
		return

	case errors.Is(err, session.ErrLockedOut):
		lg.Info("session locked out")
		s.ClearCookie(w, CookieOpts{Path: cookiePath()})
		respondJSON(w, r, s.policy.StatusCodes.Deny, map[string]string{
			"status":  "denied",
			"message": localizer.T("locked_out"),
		})
		return

	case errors.Is(err, session.ErrPersistenceFailed):
		lg.Error("can't persist verified flag", "err", err)
		respondJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status":  "retry",
			"message": localizer.T("persistence_failed"),
		})
		return

	case errors.Is(err, session.ErrNotFound), errors.Is(err, challenge.ErrGenerationUnavailable):
		s.ClearCookie(w, CookieOpts{Path: cookiePath()})
		respondJSON(w, r, http.StatusNotFound, map[string]string{
			"status":  "expired",
			"message": localizer.T("session_expired"),
		})
		return

	default:
		lg.Error("can't evaluate answer", "err", err)
		respondJSON(w, r, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if st.Status == session.StatusSucceeded {
		respondJSON(w, r, http.StatusOK, map[string]string{
			"status":  "verified",
			"message": localizer.T("verified"),
		})
		return
	}

	respondJSON(w, r, http.StatusOK, struct {
		Status    string        `json:"status"`
		Challenge challengeView `json:"challenge"`
	}{
		Status:    "ok",
		Challenge: viewOf(st),
	})
}

func (s *Server) VerificationStatus(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	vs, err := s.sessions.Status(r.Context(), user)
	if err != nil {
		lg.Error("can't read verification status", "err", err)
		respondJSON(w, r, http.StatusServiceUnavailable, map[string]string{"error": "verification status unavailable"})
		return
	}

	respondJSON(w, r, http.StatusOK, vs)
}
