package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/sensorgate/response"
	"github.com/MrEthical07/sensorgate/telemetry"
)

func (a *testAPI) publish(t *testing.T, kind, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, a.srv.URL+"/sensor/publish/"+kind, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestSensorPublishAndRead(t *testing.T) {
	api := newTestAPI(t)
	token, err := api.devices.Issue("crane-07")
	require.NoError(t, err)

	_, env := api.do(t, http.MethodGet, "/sensor/gas", nil)
	assert.Equal(t, 0, env.Code)
	assert.Nil(t, env.Data, "no reading yet")

	resp := api.publish(t, "gas", token, `{"gas_value":12.5,"temperature":18}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	_, env = api.do(t, http.MethodGet, "/sensor/gas", nil)
	data := env.Data.(map[string]any)
	assert.Equal(t, 12.5, data["gas_value"])
	assert.Equal(t, 18.0, data["temperature"])

	_, env = api.do(t, http.MethodGet, "/sensor/all", nil)
	all := env.Data.(map[string]any)
	assert.Contains(t, all, "gas")
	assert.NotContains(t, all, "angle")
}

func TestSensorPublishRejects(t *testing.T) {
	api := newTestAPI(t)
	angleOnly, err := api.devices.Issue("crane-07", "angle")
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, api.publish(t, "angle", "", `{"angle_x":1}`).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, api.publish(t, "angle", "not-a-token", `{"angle_x":1}`).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, api.publish(t, "gas", angleOnly, `{"gas_value":1}`).StatusCode)
	assert.Equal(t, http.StatusNotFound, api.publish(t, "humidity", angleOnly, `{}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, api.publish(t, "angle", angleOnly, `{"angle_x":`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, api.publish(t, "angle", angleOnly, ``).StatusCode)

	_, ok := api.router.Latest().Get(telemetry.KindAngle)
	assert.False(t, ok)
}

func TestSensorUnknownKind(t *testing.T) {
	api := newTestAPI(t)

	resp, err := http.Get(api.srv.URL + "/sensor/humidity")
	require.NoError(t, err)
	defer resp.Body.Close()
	var env response.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 40000, env.Code)
}

func TestSensorStream(t *testing.T) {
	api := newTestAPI(t)
	token, err := api.devices.Issue("crane-07")
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(api.srv.URL, "http") + "/sensor/ws?topic=angle"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return api.hub.ViewerCount() == 1 }, time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusAccepted, api.publish(t, "angle", token, `{"angle_x":50,"angle_y":0,"angle_z":0}`).StatusCode)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var u telemetry.Update
	require.NoError(t, json.Unmarshal(data, &u))
	assert.Equal(t, telemetry.KindAngle, u.Kind)
	require.Len(t, u.Alerts, 1)
	assert.Equal(t, "angle_range", u.Alerts[0].Kind)
}

func TestSensorStreamUnknownTopic(t *testing.T) {
	api := newTestAPI(t)

	resp, err := http.Get(api.srv.URL + "/sensor/ws?topic=humidity")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "unknown topic")
}
