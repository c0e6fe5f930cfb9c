package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statsResult struct {
	TotalImages           int64            `json:"totalImages"`
	VehiclesWithImages    int64            `json:"vehiclesWithImages"`
	VehiclesWithoutImages int64            `json:"vehiclesWithoutImages"`
	ByFormat              map[string]int64 `json:"byFormat"`
}

type searchEnvelope struct {
	Success    bool `json:"success"`
	Result     galleryResult
	ResultInfo struct {
		Offset     int `json:"offset"`
		Limit      int `json:"limit"`
		Count      int `json:"count"`
		TotalCount int `json:"total_count"`
	} `json:"result_info"`
}

func TestStatistics(t *testing.T) {
	ts := testServer(t)
	createVehicle(t, ts, "veh-2")
	uploadAndDecode(t, ts, nil)
	uploadAndDecode(t, ts, nil)

	resp := do(t, authReq("GET", ts.URL+"/images/statistics", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var env envelope
	decodeResponse(t, resp, &env)
	var st statsResult
	require.NoError(t, json.Unmarshal(env.Result, &st))

	assert.Equal(t, int64(2), st.TotalImages)
	assert.Equal(t, int64(1), st.VehiclesWithImages)
	assert.Equal(t, int64(1), st.VehiclesWithoutImages)
	assert.Equal(t, int64(2), st.ByFormat["image/jpeg"])
}

func TestStatistics_RequiresAuth(t *testing.T) {
	ts := testServer(t)

	resp := do(t, mustRequest(t, "GET", ts.URL+"/images/statistics"))
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSearchImages(t *testing.T) {
	ts := testServer(t)
	for range 3 {
		uploadAndDecode(t, ts, nil)
	}

	resp := do(t, authReq("GET", ts.URL+"/images/search?vehicle_id="+testVehicleID+"&is_primary=false&limit=1&offset=1", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var env searchEnvelope
	decodeResponse(t, resp, &env)

	assert.True(t, env.Success)
	require.Len(t, env.Result.Images, 1)
	assert.Equal(t, 3, env.Result.Images[0].Position)
	assert.Equal(t, 2, env.ResultInfo.TotalCount)
	assert.Equal(t, 1, env.ResultInfo.Count)
	assert.Equal(t, 1, env.ResultInfo.Limit)
	assert.Equal(t, 1, env.ResultInfo.Offset)
}

func TestSearchImages_ExactPosition(t *testing.T) {
	ts := testServer(t)
	uploadAndDecode(t, ts, nil)
	second := uploadAndDecode(t, ts, nil)

	resp := do(t, authReq("GET", ts.URL+"/images/search?position=2", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var env searchEnvelope
	decodeResponse(t, resp, &env)
	require.Len(t, env.Result.Images, 1)
	assert.Equal(t, second.ID, env.Result.Images[0].ID)
	assert.Equal(t, 50, env.ResultInfo.Limit)
}

func TestSearchImages_BadParams(t *testing.T) {
	ts := testServer(t)

	tests := []struct {
		query   string
		pointer string
	}{
		{"limit=lots", "limit"},
		{"is_primary=perhaps", "is_primary"},
		{"has_thumbnail=2x", "has_thumbnail"},
		{"min_file_size=big", "min_file_size"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := do(t, authReq("GET", ts.URL+"/images/search?"+tt.query, nil))
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var env envelope
			decodeResponse(t, resp, &env)
			require.Len(t, env.Errors, 1)
			require.NotNil(t, env.Errors[0].Source)
			assert.Equal(t, tt.pointer, env.Errors[0].Source.Pointer)
		})
	}

	resp := do(t, authReq("GET", ts.URL+"/images/search?orientation=diagonal", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 9400, errorCode(t, resp))

	resp = do(t, authReq("GET", ts.URL+"/images/search?limit=500", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 9400, errorCode(t, resp))
}

func TestRegenerateThumbnail(t *testing.T) {
	ts := testServer(t)
	created := uploadAndDecode(t, ts, nil)

	resp := do(t, authReq("POST", imagesURL(ts, testVehicleID)+"/"+created.ID+"/thumbnail", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var env envelope
	decodeResponse(t, resp, &env)
	var img imageResult
	require.NoError(t, json.Unmarshal(env.Result, &img))
	assert.Equal(t, created.ID, img.ID)
	require.NotNil(t, img.ThumbnailPath)

	thumb := do(t, authReq("GET", imagesURL(ts, testVehicleID)+"/"+created.ID+"/thumbnail", nil))
	thumb.Body.Close()
	assert.Equal(t, http.StatusOK, thumb.StatusCode)
}

func TestRegenerateThumbnail_NotFound(t *testing.T) {
	ts := testServer(t)

	resp := do(t, authReq("POST", imagesURL(ts, testVehicleID)+"/missing/thumbnail", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 9414, errorCode(t, resp))
}

func mustRequest(t *testing.T, method, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	return req
}
