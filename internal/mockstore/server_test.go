package mockstore_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/longhornrumble/dealprep/internal/mockstore"
)

func post(t *testing.T, url string, header http.Header, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestMockStore_NotesRequireBearer(t *testing.T) {
	t.Parallel()

	srv := mockstore.New()
	srv.RequireBearerToken("crm-token")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	note := map[string]string{"target": "acct-1", "title": "Deal prep", "body_markdown": "# Acme", "run_id": "run_1"}
	resp := post(t, ts.URL+"/v1/notes", nil, note)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d want 401", resp.StatusCode)
	}

	resp = post(t, ts.URL+"/v1/notes", http.Header{"Authorization": {"Bearer crm-token"}}, note)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status=%d want 201", resp.StatusCode)
	}
	notes := srv.Notes()
	if len(notes) != 1 || notes[0].Target != "acct-1" || notes[0].ID != "note-000001" {
		t.Fatalf("unexpected notes: %+v", notes)
	}
	if len(srv.Calls()) != 2 {
		t.Fatalf("calls=%d want 2", len(srv.Calls()))
	}
}

func TestMockStore_TasksValidate(t *testing.T) {
	t.Parallel()

	srv := mockstore.New()
	srv.RequireAPIKey("motion-key")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	h := http.Header{"X-Api-Key": {"motion-key"}}
	resp := post(t, ts.URL+"/v1/tasks", h, map[string]any{"name": "Prep call: Acme", "workspaceId": "ws", "dueDate": "tomorrow"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d want 422", resp.StatusCode)
	}

	resp = post(t, ts.URL+"/v1/tasks", h, map[string]any{
		"name": "Prep call: Acme", "workspaceId": "ws", "dueDate": "2024-01-16T09:00:00Z",
		"priority": "HIGH", "labels": []string{"deal-prep"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status=%d want 201", resp.StatusCode)
	}
	tasks := srv.Tasks()
	if len(tasks) != 1 || tasks[0].Priority != "HIGH" || len(tasks[0].Labels) != 1 {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}
