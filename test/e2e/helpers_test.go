package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
)

// Request helpers

// makeRequest makes an HTTP request to the test server.
func makeRequest(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()

	env := GetTestEnv()
	if env == nil {
		t.Fatal("Test environment not initialized")
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	url := env.BaseURL + path //nolint:staticcheck // SA5011: Check above ensures non-nil
	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := env.Client.Do(req) //nolint:staticcheck // SA5011: env checked above
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	return resp
}

// parseResponse parses a JSON response into the given target.
func parseResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}

	if target != nil {
		if err := json.Unmarshal(data, target); err != nil {
			t.Fatalf("Failed to parse response JSON: %v\nBody: %s", err, string(data))
		}
	}
}

// assertStatus asserts the response status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()

	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("Expected status %d, got %d. Body: %s", expected, resp.StatusCode, string(body))
	}
}

// Health helpers

// getHealth retrieves the health status.
func getHealth(t *testing.T) map[string]interface{} {
	t.Helper()

	resp := makeRequest(t, "GET", "/api/v1/health", nil)
	assertStatus(t, resp, http.StatusOK)

	var result map[string]interface{}
	parseResponse(t, resp, &result)
	return result
}

// getStatus retrieves the current goal execution status.
func getStatus(t *testing.T) map[string]interface{} {
	t.Helper()

	resp := makeRequest(t, "GET", "/api/v1/status", nil)
	assertStatus(t, resp, http.StatusOK)

	var result map[string]interface{}
	parseResponse(t, resp, &result)
	return result
}

// Session helpers

// listSessions retrieves all sessions.
func listSessions(t *testing.T) []interface{} {
	t.Helper()

	resp := makeRequest(t, "GET", "/api/v1/sessions", nil)
	assertStatus(t, resp, http.StatusOK)

	var result map[string]interface{}
	parseResponse(t, resp, &result)

	sessions, ok := result["sessions"].([]interface{})
	if !ok {
		return []interface{}{}
	}
	return sessions
}

// getSessionMessages retrieves the messages of a session by key.
//nolint:unused // Test helper
func getSessionMessages(t *testing.T, sessionKey string) []interface{} {
	t.Helper()

	resp := makeRequest(t, "GET", fmt.Sprintf("/api/v1/sessions/%s/messages", sessionKey), nil)
	assertStatus(t, resp, http.StatusOK)

	var result map[string]interface{}
	parseResponse(t, resp, &result)

	messages, ok := result["messages"].([]interface{})
	if !ok {
		return []interface{}{}
	}
	return messages
}

// resetSession rotates the active session and returns the new key.
//nolint:unused // Test helper
func resetSession(t *testing.T) string {
	t.Helper()

	resp := makeRequest(t, "POST", "/api/v1/sessions/reset", nil)
	assertStatus(t, resp, http.StatusOK)

	var result map[string]interface{}
	parseResponse(t, resp, &result)

	key, ok := result["session_key"].(string)
	if !ok {
		t.Fatal("session_key not found in response")
	}
	return key
}

// Goal helpers

// submitGoal submits a goal for execution.
//nolint:unused // Test helper
func submitGoal(t *testing.T, goal string) map[string]interface{} {
	t.Helper()

	body := map[string]interface{}{
		"goal": goal,
	}

	resp := makeRequest(t, "POST", "/api/v1/goal", body)
	assertStatus(t, resp, http.StatusAccepted)

	var result map[string]interface{}
	parseResponse(t, resp, &result)
	return result
}

// interruptGoal requests cancellation of the running goal.
//nolint:unused // Test helper
func interruptGoal(t *testing.T) {
	t.Helper()

	resp := makeRequest(t, "POST", "/api/v1/interrupt", nil)
	assertStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

// Skill helpers

// listSkills retrieves all loaded skills.
func listSkills(t *testing.T) []interface{} {
	t.Helper()

	resp := makeRequest(t, "GET", "/api/v1/skills", nil)
	assertStatus(t, resp, http.StatusOK)

	var result map[string]interface{}
	parseResponse(t, resp, &result)

	skills, ok := result["skills"].([]interface{})
	if !ok {
		return []interface{}{}
	}
	return skills
}
