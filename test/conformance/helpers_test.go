//go:build conformance

package conformance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// apiURL builds a full URL for the given path, e.g. "/vehicles".
func apiURL(path string) string {
	return strings.TrimRight(baseURL, "/") + path
}

// imagesURL is the gallery collection of a vehicle.
func imagesURL(vehicleID string) string {
	return apiURL("/vehicles/" + vehicleID + "/images")
}

// doRequest performs an HTTP request and returns the response.
func doRequest(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// doJSON performs an HTTP request and returns the decoded JSON as map[string]any.
func doJSON(t *testing.T, method, url string, body io.Reader) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+authToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return decode(t, doRequest(t, req))
}

// doMultipartUpload posts an image with optional form fields and returns the decoded JSON.
func doMultipartUpload(t *testing.T, url string, content []byte, fields map[string]string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", "vehicle.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write content: %v", err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req, err := http.NewRequest("POST", url, &buf)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+authToken)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return decode(t, doRequest(t, req))
}

func decode(t *testing.T, resp *http.Response) (int, map[string]any) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal JSON: %v\nbody: %s", err, string(data))
	}
	return resp.StatusCode, raw
}

// testJPEG renders a small gradient so the server has something to thumbnail.
func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// assertEnvelopeShape validates the response envelope structure.
func assertEnvelopeShape(t *testing.T, raw map[string]any) {
	t.Helper()

	// success must be a bool
	success, ok := raw["success"]
	if !ok {
		t.Error("envelope missing 'success' field")
	} else if _, ok := success.(bool); !ok {
		t.Errorf("'success' should be bool, got %T", success)
	}

	// errors must be an array of objects with code+message
	errors, ok := raw["errors"]
	if !ok {
		t.Error("envelope missing 'errors' field")
	} else if errArr, ok := errors.([]any); ok {
		for i, e := range errArr {
			errObj, ok := e.(map[string]any)
			if !ok {
				t.Errorf("errors[%d] should be object, got %T", i, e)
				continue
			}
			if _, ok := errObj["code"]; !ok {
				t.Errorf("errors[%d] missing 'code'", i)
			}
			if _, ok := errObj["message"]; !ok {
				t.Errorf("errors[%d] missing 'message'", i)
			}
		}
	} else {
		t.Errorf("'errors' should be array, got %T", errors)
	}

	if _, ok := raw["messages"].([]any); !ok {
		t.Errorf("'messages' should be array, got %T", raw["messages"])
	}
}

// assertField validates a field exists in an object and has the expected Go type.
// Returns the typed value.
func assertField[T any](t *testing.T, obj map[string]any, field string) T {
	t.Helper()
	val, ok := obj[field]
	if !ok {
		var zero T
		t.Errorf("missing field %q", field)
		return zero
	}
	typed, ok := val.(T)
	if !ok {
		var zero T
		t.Errorf("field %q: expected %T, got %T (%v)", field, zero, val, val)
		return zero
	}
	return typed
}

// errorCode returns errors[0].code of an error envelope.
func errorCode(t *testing.T, raw map[string]any) int {
	t.Helper()
	errs, ok := raw["errors"].([]any)
	if !ok || len(errs) == 0 {
		t.Fatalf("expected non-empty errors, got %v", raw["errors"])
	}
	obj, _ := errs[0].(map[string]any)
	code, _ := obj["code"].(float64)
	return int(code)
}

// createVehicleAndCleanup registers a fresh vehicle and deletes it, with its
// gallery, when the test ends.
func createVehicleAndCleanup(t *testing.T) string {
	t.Helper()
	id := "conf-" + uuid.NewString()
	status, raw := doJSON(t, "POST", apiURL("/vehicles"), strings.NewReader(fmt.Sprintf(`{"id":%q,"kind":"car"}`, id)))
	if status != http.StatusCreated {
		t.Fatalf("create vehicle failed with status %d: %v", status, raw)
	}

	t.Cleanup(func() {
		req, _ := http.NewRequest("DELETE", apiURL("/vehicles/"+id), nil)
		req.Header.Set("Authorization", "Bearer "+authToken)
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
		}
	})
	return id
}

// uploadImage uploads a test image and returns the result object.
func uploadImage(t *testing.T, vehicleID string, fields map[string]string) map[string]any {
	t.Helper()
	status, raw := doMultipartUpload(t, imagesURL(vehicleID), testJPEG(t), fields)
	if status != http.StatusCreated {
		t.Fatalf("upload failed with status %d: %v", status, raw)
	}
	result, ok := raw["result"].(map[string]any)
	if !ok {
		t.Fatalf("upload result is not object: %T", raw["result"])
	}
	return result
}
