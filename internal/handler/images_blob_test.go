package handler_test

import (
	"bytes"
	"encoding/json"
	"image/jpeg"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOriginal(t *testing.T) {
	ts := testServer(t)

	content := testJPEG(t, 120, 90)
	resp := uploadFile(t, ts, testVehicleID, content, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var env envelope
	decodeResponse(t, resp, &env)
	var created imageResult
	require.NoError(t, json.Unmarshal(env.Result, &created))

	resp = do(t, authReq("GET", imagesURL(ts, testVehicleID)+"/"+created.ID+"/original", nil))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, content, body)
}

func TestGetThumbnail(t *testing.T) {
	ts := testServer(t)
	created := uploadAndDecode(t, ts, nil)

	resp := do(t, authReq("GET", imagesURL(ts, testVehicleID)+"/"+created.ID+"/thumbnail", nil))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(body))
	require.NoError(t, err)
	assert.LessOrEqual(t, cfg.Width, 300)
	assert.LessOrEqual(t, cfg.Height, 300)
}

func TestGetOriginal_NotFound(t *testing.T) {
	ts := testServer(t)

	resp := do(t, authReq("GET", imagesURL(ts, testVehicleID)+"/nonexistent-id/original", nil))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
