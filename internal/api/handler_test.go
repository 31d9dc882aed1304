//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ashureev/sitecraft/internal/alert"
	"github.com/ashureev/sitecraft/internal/apiclient"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestAlert(t *testing.T) {
	w := httptest.NewRecorder()
	Alert(w, alert.New("Failed to load project", &apiclient.BackendError{Op: "get project", StatusCode: http.StatusNotFound}))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"alert":"Failed to load project"`) {
		t.Errorf("Unexpected body %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	Alert(w, errors.New("plain"))
	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), MsgRequestFailed) {
		t.Errorf("Unexpected body %s", w.Body.String())
	}
}
