package syncengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/shweretail/posledger_backend/models"
)

// ErrSyncAuth means the remote rejected our credentials. The engine stops
// the cycle instead of burning the queue against a 401.
var ErrSyncAuth = errors.New("sync auth rejected")

// RejectedError is a remote 4xx on a single change: the record itself is
// bad and retrying identical bytes cannot help. The entry is parked as
// failed; transport errors never produce this.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("change rejected (%d): %s", e.StatusCode, e.Message)
}

// ChangeRecord is the wire form of one mutation, identical in both
// directions. ServerSeq is assigned by the remote store and drives the pull
// watermark; it is empty on push.
type ChangeRecord struct {
	BranchId  string            `json:"branch_id"`
	Kind      models.EntityKind `json:"kind"`
	EntityId  string            `json:"entity_id"`
	Op        models.SyncOp     `json:"op"`
	Revision  int64             `json:"revision"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
	ServerSeq string            `json:"server_seq,omitempty"`
}

type PullResponse struct {
	Changes    []ChangeRecord `json:"changes"`
	NextCursor string         `json:"next_cursor"`
	HasMore    bool           `json:"has_more"`
}

// RemoteClient talks to the central store over HTTP. Calls are rate limited
// so a big queue drain after a long offline stretch does not hammer the
// shared backend.
type RemoteClient struct {
	baseURL   string
	secret    string
	secretHdr string
	http      *http.Client
	limiter   <-chan time.Time
}

func NewRemoteClient() (*RemoteClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("SYNC_REMOTE_URL"))
	if baseURL == "" {
		return nil, errors.New("SYNC_REMOTE_URL is empty")
	}
	secret := strings.TrimSpace(os.Getenv("SYNC_SECRET"))
	if secret == "" {
		return nil, errors.New("SYNC_SECRET is empty")
	}
	secretHeader := strings.TrimSpace(os.Getenv("SYNC_SECRET_HEADER"))
	if secretHeader == "" {
		secretHeader = "X-Sync-Secret"
	}
	ratePerMin := int64(120)
	if v := strings.TrimSpace(os.Getenv("SYNC_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			ratePerMin = n
		}
	}
	interval := time.Minute / time.Duration(ratePerMin)

	return &RemoteClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secret:    secret,
		secretHdr: secretHeader,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   time.Tick(interval),
	}, nil
}

// PushChange sends one queue entry. A nil error means the remote durably
// accepted it; ErrSyncAuth and RejectedError classify the permanent
// failures, anything else is transient.
func (c *RemoteClient) PushChange(ctx context.Context, change ChangeRecord) error {
	<-c.limiter
	body, err := json.Marshal(change)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/changes", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set(c.secretHdr, c.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrSyncAuth
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &RejectedError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	default:
		return fmt.Errorf("sync push error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
}

// PullChanges fetches remote changes after the cursor, excluding our own
// branch's pushes.
func (c *RemoteClient) PullChanges(ctx context.Context, branchId string, cursor string, limit int) (PullResponse, error) {
	<-c.limiter
	params := url.Values{}
	params.Set("branch", branchId)
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/changes?"+params.Encode(), nil)
	if err != nil {
		return PullResponse{}, err
	}
	req.Header.Set(c.secretHdr, c.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return PullResponse{}, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return PullResponse{}, ErrSyncAuth
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return PullResponse{}, fmt.Errorf("sync pull error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed PullResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return PullResponse{}, err
	}
	return parsed, nil
}
