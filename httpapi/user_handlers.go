package httpapi

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/MrEthical07/sensorgate"
	"github.com/MrEthical07/sensorgate/middleware"
	"github.com/MrEthical07/sensorgate/response"
)

type loginView struct {
	SessionID string `json:"sessionId"`
	*sensorgate.Profile
}

type imageCodeView struct {
	CodeKey     string `json:"codeKey"`
	ImageBase64 string `json:"imageBase64"`
}

type emailCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type phoneCodeRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Code        string `json:"code"`
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	if werr := response.Error(w, err); werr != nil {
		s.log.WithError(werr).Debug("write error response")
	}
}

func (s *Server) ok(w http.ResponseWriter, data any) {
	if err := response.OK(w, data); err != nil {
		s.log.WithError(err).Debug("write response")
	}
}

// login handles POST /user/login and sets the session cookie.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req sensorgate.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, err)
		return
	}

	res, err := s.engine.Login(r.Context(), req)
	if err != nil {
		s.fail(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.engine.CookieName(),
		Value:    res.SessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.engine.Config().Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.engine.SessionWindow().Seconds()),
	})
	s.ok(w, loginView{SessionID: res.SessionID, Profile: res.Profile})
}

// register handles POST /user/register and returns the new account id.
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req sensorgate.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, err)
		return
	}

	p, err := s.engine.Register(r.Context(), req)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, p.ID)
}

// logout handles POST /user/logout. The gate has already resolved the
// session.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Logout(r.Context(), middleware.SessionIDFromContext(r.Context())); err != nil {
		s.fail(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.engine.CookieName(),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	s.ok(w, true)
}

func (s *Server) current(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.ProfileFromContext(r.Context())
	if !ok {
		s.fail(w, sensorgate.ErrSessionNotFound)
		return
	}
	s.ok(w, p)
}

func (s *Server) sendEmailCode(w http.ResponseWriter, r *http.Request) {
	var req emailCodeRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		s.fail(w, sensorgate.ErrMissingFields)
		return
	}
	if err := s.engine.SendEmailCode(r.Context(), strings.TrimSpace(req.Email)); err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, "verification code sent, check your inbox")
}

func (s *Server) verifyEmailCode(w http.ResponseWriter, r *http.Request) {
	var req emailCodeRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Code) == "" {
		s.fail(w, sensorgate.ErrMissingFields)
		return
	}
	if err := s.engine.VerifyEmailCode(r.Context(), strings.TrimSpace(req.Email), strings.TrimSpace(req.Code)); err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, true)
}

func (s *Server) sendPhoneCode(w http.ResponseWriter, r *http.Request) {
	var req phoneCodeRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		s.fail(w, sensorgate.ErrMissingFields)
		return
	}
	if err := s.engine.SendPhoneCode(r.Context(), strings.TrimSpace(req.PhoneNumber)); err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, "verification code sent")
}

func (s *Server) verifyPhoneCode(w http.ResponseWriter, r *http.Request) {
	var req phoneCodeRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	if strings.TrimSpace(req.PhoneNumber) == "" || strings.TrimSpace(req.Code) == "" {
		s.fail(w, sensorgate.ErrMissingFields)
		return
	}
	if err := s.engine.VerifyPhoneCode(r.Context(), strings.TrimSpace(req.PhoneNumber), strings.TrimSpace(req.Code)); err != nil {
		s.fail(w, err)
		return
	}
	s.ok(w, true)
}

// imageCode handles GET /user/code/image. The image is returned as a data
// URI next to the key the client echoes back as codeKey.
func (s *Server) imageCode(w http.ResponseWriter, r *http.Request) {
	ch, err := s.engine.IssueChallenge(r.Context(), s.identity.Resolve(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	s.ok(w, imageCodeView{
		CodeKey:     ch.ID,
		ImageBase64: "data:" + ch.ContentType + ";base64," + base64.StdEncoding.EncodeToString(ch.Image),
	})
}
