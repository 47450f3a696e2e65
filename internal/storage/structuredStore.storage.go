package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"hkboard/internal/models"

	logger "github.com/Bparsons0904/goLogger"
)

const STRUCTURED_STORE_NAME = "structured"

type apiResponse struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Status  string `json:"status"`
}

// StructuredStore talks to the record-oriented HTTP API. Reads return whole collections;
// writes are translated into the entity endpoints.
type StructuredStore struct {
	baseURL string
	client  *http.Client
	log     logger.Logger
}

func NewStructuredStore(baseURL string, client *http.Client) *StructuredStore {
	if client == nil {
		client = &http.Client{}
	}
	return &StructuredStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		log:     logger.New("storage").File("structuredStore.storage"),
	}
}

func (s *StructuredStore) Name() string {
	return STRUCTURED_STORE_NAME
}

func (s *StructuredStore) Probe(ctx context.Context) error {
	body, err := s.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}

	var health apiResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("%w: health response: %w", ErrUnreachable, err)
	}
	if health.Status != "ok" {
		return fmt.Errorf("%w: health status %q", ErrUnreachable, health.Status)
	}
	return nil
}

func (s *StructuredStore) Read(ctx context.Context, collection models.Collection) (json.RawMessage, error) {
	if !collection.IsValid() {
		return nil, fmt.Errorf("%w: unknown collection %q", ErrUnsupported, collection)
	}

	body, err := s.do(ctx, http.MethodGet, "/"+string(collection), nil)
	if err != nil {
		return nil, err
	}

	var probe []json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("%w: %s is not a list: %w", ErrCorrupt, collection, err)
	}
	return body, nil
}

// Write applies each change in order and stops at the first failure. Without changes the
// whole collection is replaced.
func (s *StructuredStore) Write(ctx context.Context, req WriteRequest) error {
	changes := req.Changes
	if len(changes) == 0 {
		changes = []Change{{Op: ChangeReplace}}
	}

	for _, change := range changes {
		if err := s.apply(ctx, req, change); err != nil {
			return err
		}
	}
	return nil
}

func (s *StructuredStore) apply(ctx context.Context, req WriteRequest, change Change) error {
	key := url.PathEscape(change.Key)

	var method, path string
	var payload any = change.Payload
	switch change.Op {
	case ChangeReplace:
		method, path = http.MethodPut, "/"+string(req.Collection)
		payload = req.Snapshot
	case ChangeRoomStatus:
		method, path = http.MethodPut, "/rooms/"+key+"/status"
	case ChangeRoomGuests:
		method, path = http.MethodPut, "/rooms/"+key+"/guests"
	case ChangeTaskCreate:
		method, path = http.MethodPost, "/tasks"
	case ChangeTaskComplete:
		method, path = http.MethodPut, "/tasks/"+key+"/complete"
	case ChangeTaskReopen:
		method, path = http.MethodPut, "/tasks/"+key+"/reopen"
	case ChangeMessageCreate:
		method, path = http.MethodPost, "/messages"
	case ChangeMessageUpdate:
		method, path = http.MethodPut, "/messages/"+key
	case ChangeArchiveCreate:
		method, path = http.MethodPost, "/archive"
	case ChangeArchiveDelete:
		method, path = http.MethodDelete, "/archives/"+key
		payload = nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupported, change.Op)
	}

	var body []byte
	if payload != nil {
		var err error
		if raw, ok := payload.(json.RawMessage); ok {
			body = raw
		} else if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("encode %s payload: %w", change.Op, err)
		}
	}

	response, err := s.do(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", change.Op, change.Key, err)
	}

	var result apiResponse
	if len(response) > 0 && json.Unmarshal(response, &result) == nil && result.Success != nil && !*result.Success {
		return fmt.Errorf("%s %s rejected: %s", change.Op, change.Key, result.Error)
	}
	return nil
}

func (s *StructuredStore) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.log.Function("do").Warn("failed to close response body", "error", closeErr)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrUnreachable, err)
	}

	if resp.StatusCode == http.StatusNotFound && method == http.MethodGet {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := http.StatusText(resp.StatusCode)
		var apiErr apiResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			reason = apiErr.Error
		}
		sentinel := ErrUnreachable
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			sentinel = ErrRejected
		}
		return nil, fmt.Errorf("%w: %s %s returned %d: %s", sentinel, method, path, resp.StatusCode, reason)
	}

	return data, nil
}

var _ CollectionStore = (*StructuredStore)(nil)
