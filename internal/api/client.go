package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"vibeblog-cli/internal/config"
)

const clientIdentifier = "vibeblog-cli"

type Client struct {
	baseURL    string
	httpClient *http.Client
	// streamClient carries SSE subscriptions and has no overall deadline: a
	// generation run lasts as long as the pipeline needs.
	streamClient *http.Client
	token        string
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.Server, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		streamClient: &http.Client{},
		token:        cfg.Token,
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// --- Task creation ---

type CreateTaskRequest struct {
	Topic            string `json:"topic"`
	Style            string `json:"style,omitempty"`
	Language         string `json:"language,omitempty"`
	ClientIdentifier string `json:"client_identifier,omitempty"`
}

type CreateTaskResponse struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error,omitempty"`
}

// CreateTask submits a topic to the pipeline and returns the task id whose
// event stream can then be subscribed.
func (c *Client) CreateTask(req CreateTaskRequest) (string, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return "", fmt.Errorf("topic must not be empty")
	}
	req.ClientIdentifier = clientIdentifier
	var resp CreateTaskResponse
	if err := c.doJSON("POST", "/api/tasks", req, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("server error: %s", resp.Error)
	}
	if resp.TaskID == "" {
		return "", fmt.Errorf("server returned no task id")
	}
	return resp.TaskID, nil
}

// --- Outline checkpoint ---

// Actions accepted by the outline checkpoint.
const (
	OutlineAccept = "accept"
	OutlineEdit   = "edit"
)

type ConfirmOutlineRequest struct {
	Action string `json:"action"`
	Note   string `json:"note,omitempty"`
}

type ConfirmOutlineResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ConfirmOutline resolves the outline checkpoint. action is OutlineAccept or
// OutlineEdit; note carries revision instructions for the edit case. Writing
// resumes over the existing event stream, not in this response.
func (c *Client) ConfirmOutline(taskID, action, note string) error {
	if action != OutlineAccept && action != OutlineEdit {
		return fmt.Errorf("invalid outline action %q", action)
	}
	var resp ConfirmOutlineResponse
	err := c.doJSON("POST", "/api/tasks/"+taskID+"/outline", ConfirmOutlineRequest{Action: action, Note: note}, &resp)
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("server error: %s", resp.Error)
	}
	return nil
}

// --- Cancellation ---

type CancelTaskResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (c *Client) CancelTask(taskID string) (*CancelTaskResponse, error) {
	var resp CancelTaskResponse
	if err := c.doJSON("POST", "/api/tasks/"+taskID+"/cancel", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Task list ---

type TaskInfo struct {
	ID         string `json:"id"`
	Topic      string `json:"topic"`
	Status     string `json:"status"`
	CreateTime string `json:"created_at"`
}

type TaskListResponse struct {
	Tasks []TaskInfo `json:"tasks"`
}

func (c *Client) ListTasks(limit int) (*TaskListResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	path := "/api/tasks"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var resp TaskListResponse
	if err := c.doJSON("GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Generic JSON helper ---

func (c *Client) doJSON(method, path string, reqBody interface{}, result interface{}) error {
	var bodyReader io.Reader
	if reqBody != nil && method != "GET" {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}
	return nil
}
