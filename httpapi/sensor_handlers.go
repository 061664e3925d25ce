package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/MrEthical07/sensorgate"
	"github.com/MrEthical07/sensorgate/response"
	"github.com/MrEthical07/sensorgate/telemetry"
)

func (s *Server) paramsError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, s.log, status, response.Envelope{Code: sensorgate.CodeParams, Message: msg})
}

// sensorLatest handles GET /sensor/{kind}. Data is null until the first
// reading of that kind arrives.
func (s *Server) sensorLatest(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	if _, ok := s.telemetry.KindTopic(kind); !ok {
		s.paramsError(w, http.StatusNotFound, "unknown sensor")
		return
	}
	u, ok := s.telemetry.Latest().Get(kind)
	if !ok {
		s.ok(w, nil)
		return
	}
	s.ok(w, u.Data)
}

func (s *Server) sensorAll(w http.ResponseWriter, r *http.Request) {
	s.ok(w, s.telemetry.Latest().All())
}

// sensorStream handles GET /sensor/ws?topic=gas|angle.
func (s *Server) sensorStream(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		s.paramsError(w, http.StatusNotFound, "streaming disabled")
		return
	}
	kind := strings.TrimPrefix(r.URL.Query().Get("topic"), "/topic/")
	if _, ok := s.telemetry.KindTopic(kind); !ok {
		s.paramsError(w, http.StatusBadRequest, "unknown topic")
		return
	}
	if err := s.hub.Serve(w, r, kind); err != nil {
		s.log.WithError(err).Debug("websocket upgrade failed")
	}
}

// sensorPublish handles POST /sensor/publish/{kind} for devices holding a
// bearer device token.
func (s *Server) sensorPublish(w http.ResponseWriter, r *http.Request) {
	if s.devices == nil {
		s.paramsError(w, http.StatusNotFound, "device publishing disabled")
		return
	}
	kind := mux.Vars(r)["kind"]
	topic, ok := s.telemetry.KindTopic(kind)
	if !ok {
		s.paramsError(w, http.StatusNotFound, "unknown sensor")
		return
	}

	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		_ = response.Unauthorized(w)
		return
	}
	claims, err := s.devices.Authorize(strings.TrimSpace(token), kind)
	if err != nil {
		s.log.WithError(err).WithField("kind", kind).Warn("device token rejected")
		_ = response.Unauthorized(w)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil || len(payload) == 0 {
		s.paramsError(w, http.StatusBadRequest, "empty payload")
		return
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(r.Context(), topic, payload); err != nil {
			s.log.WithError(err).WithField("device", claims.DeviceID).Error("forward telemetry")
			s.fail(w, sensorgate.ErrStoreUnavailable)
			return
		}
	} else if err := s.telemetry.Handle(topic, payload); err != nil {
		if errors.Is(err, telemetry.ErrMalformed) {
			s.paramsError(w, http.StatusBadRequest, "malformed payload")
			return
		}
		s.fail(w, err)
		return
	}

	s.log.WithField("device", claims.DeviceID).WithField("topic", topic).Debug("telemetry published")
	writeJSON(w, s.log, http.StatusAccepted, response.Envelope{Code: sensorgate.CodeSuccess, Message: "ok"})
}
