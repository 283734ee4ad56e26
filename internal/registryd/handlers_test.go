package registryd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pokedraft/draftlink/pkg/rooms"
)

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := Config{RoomTTL: time.Hour, SweepInterval: time.Minute}
	s := NewServer(cfg, zap.NewNop(), NewMemoryStore())
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return s, ts
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRoomLifecycle(t *testing.T) {
	_, ts := testServer(t)

	// Create with the host offer attached.
	resp := doJSON(t, http.MethodPost, ts.URL+"/rooms",
		rooms.CreateRequest{RoomID: "ABCD1234", HostOffer: "offer-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[rooms.CreateResponse](t, resp)
	assert.Equal(t, "ABCD1234", created.RoomID)

	// Check reports existence with the record attached.
	resp = doJSON(t, http.MethodGet, ts.URL+"/rooms/ABCD1234/check", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	check := decode[rooms.CheckResponse](t, resp)
	require.True(t, check.Exists)
	require.NotNil(t, check.Room)
	assert.Equal(t, "offer-1", check.Room.HostOffer)
	assert.Equal(t, rooms.ToolTypeDraft, check.Room.ToolType)

	// Guest posts its answer; the host's next fetch sees it.
	resp = doJSON(t, http.MethodPut, ts.URL+"/rooms/ABCD1234/answer",
		rooms.AnswerRequest{GuestAnswer: "answer-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/rooms/ABCD1234", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec := decode[rooms.Record](t, resp)
	assert.Equal(t, "offer-1", rec.HostOffer)
	assert.Equal(t, "answer-1", rec.GuestAnswer)
	assert.Equal(t, int(time.Hour.Seconds()), rec.TTL)

	// Host may refresh its offer in place.
	resp = doJSON(t, http.MethodPut, ts.URL+"/rooms/ABCD1234/offer",
		rooms.OfferRequest{HostOffer: "offer-2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/rooms/ABCD1234", nil)
	rec = decode[rooms.Record](t, resp)
	assert.Equal(t, "offer-2", rec.HostOffer)
}

func TestCreateRoomValidatesID(t *testing.T) {
	_, ts := testServer(t)
	for _, id := range []string{"", "abc", "abcd1234", "ABCD12345", "ABCD-123"} {
		resp := doJSON(t, http.MethodPost, ts.URL+"/rooms", rooms.CreateRequest{RoomID: id})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "id %q", id)
	}
}

func TestCreateRoomOverwritesExisting(t *testing.T) {
	_, ts := testServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/rooms",
		rooms.CreateRequest{RoomID: "ABCD1234", HostOffer: "old"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.URL+"/rooms",
		rooms.CreateRequest{RoomID: "ABCD1234", HostOffer: "new"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/rooms/ABCD1234", nil)
	rec := decode[rooms.Record](t, resp)
	assert.Equal(t, "new", rec.HostOffer)
	assert.Empty(t, rec.GuestAnswer)
}

func TestMissingRoom(t *testing.T) {
	_, ts := testServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/rooms/NOPE0000/check", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	check := decode[rooms.CheckResponse](t, resp)
	assert.False(t, check.Exists)
	assert.Nil(t, check.Room)

	resp = doJSON(t, http.MethodGet, ts.URL+"/rooms/NOPE0000", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, ts.URL+"/rooms/NOPE0000/offer",
		rooms.OfferRequest{HostOffer: "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, ts.URL+"/rooms/NOPE0000/answer",
		rooms.AnswerRequest{GuestAnswer: "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	_, ts := testServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
