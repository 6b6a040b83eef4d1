// YouTube Data API [Transport] implementation.
//
// Resumable uploads follow the protocol at
// https://developers.google.com/youtube/v3/guides/using_resumable_upload_protocol:
// an initiation request returns the session URI in the Location header,
// chunks go out with Content-Range headers, and 308 Resume Incomplete
// responses report the confirmed range.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/panqplex/panqplex/internal/models"
	"github.com/panqplex/panqplex/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultUploadBaseURL = "https://www.googleapis.com/upload/youtube/v3"

	// statusResumeIncomplete is returned while the transfer is not yet complete.
	statusResumeIncomplete = 308
)

// YouTubeService implements [Transport] against the YouTube upload endpoint.
//
// Every request of a resumable session is authenticated: the owning account
// is bound to the session URI at initiation and looked up for each chunk
// send and offset probe. Sessions resumed from a previous process are
// re-bound through [SessionRegistrar].
type YouTubeService struct {
	baseURL    string
	httpClient *http.Client
	creds      Credentials
	limiter    *rate.Limiter

	mu       sync.Mutex
	sessions map[string]*models.Account
}

// NewYouTubeService creates a transport for the given credential source.
// requestsPerSecond bounds the request rate; <= 0 disables pacing.
func NewYouTubeService(baseURL string, client *http.Client, creds Credentials, requestsPerSecond int) *YouTubeService {
	if baseURL == "" {
		baseURL = defaultUploadBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &YouTubeService{
		baseURL:    baseURL,
		httpClient: client,
		creds:      creds,
		limiter:    rate.NewLimiter(limit, 1),
		sessions:   map[string]*models.Account{},
	}
}

// RegisterSession binds an account to an existing session URI so resumed
// uploads authenticate like freshly initiated ones.
func (y *YouTubeService) RegisterSession(sessionToken string, account *models.Account) {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.sessions[sessionToken] = account
}

func (y *YouTubeService) sessionAccount(sessionToken string) *models.Account {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.sessions[sessionToken]
}

func (y *YouTubeService) forgetSession(sessionToken string) {
	y.mu.Lock()
	defer y.mu.Unlock()
	delete(y.sessions, sessionToken)
}

// videoResource is the metadata body for session initiation.
type videoResource struct {
	Snippet videoSnippet `json:"snippet"`
	Status  videoStatus  `json:"status"`
}

type videoSnippet struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	CategoryID  string   `json:"categoryId,omitempty"`
	ChannelID   string   `json:"channelId,omitempty"`
}

type videoStatus struct {
	PrivacyStatus string `json:"privacyStatus"`
}

// resourceFromMetadata maps the engine's flat metadata onto the video
// resource. Unknown keys ride along as tags so nothing is silently lost.
func resourceFromMetadata(account *models.Account, metadata map[string]string) videoResource {
	res := videoResource{
		Snippet: videoSnippet{
			Title:     metadata["title"],
			ChannelID: account.DefaultChannel,
		},
		Status: videoStatus{PrivacyStatus: "private"},
	}
	if v := metadata["description"]; v != "" {
		res.Snippet.Description = v
	}
	if v := metadata["tags"]; v != "" {
		res.Snippet.Tags = strings.Split(v, ",")
	}
	if v := metadata["category"]; v != "" {
		res.Snippet.CategoryID = v
	}
	if v := metadata["privacy"]; v != "" {
		res.Status.PrivacyStatus = v
	}
	return res
}

// CreateUploadSession opens a creation session and returns the session URI.
func (y *YouTubeService) CreateUploadSession(ctx context.Context, account *models.Account, metadata map[string]string, totalBytes int64) (string, error) {
	url := y.baseURL + "/videos?uploadType=resumable&part=snippet,status"
	return y.initiateSession(ctx, http.MethodPost, url, account, metadata, totalBytes)
}

// UpdateSession opens a replace session for an existing remote video.
func (y *YouTubeService) UpdateSession(ctx context.Context, account *models.Account, remoteID string, metadata map[string]string, totalBytes int64) (string, error) {
	url := y.baseURL + "/videos?uploadType=resumable&part=snippet,status&id=" + remoteID
	return y.initiateSession(ctx, http.MethodPut, url, account, metadata, totalBytes)
}

func (y *YouTubeService) initiateSession(ctx context.Context, method, url string, account *models.Account, metadata map[string]string, totalBytes int64) (string, error) {
	body, err := json.Marshal(resourceFromMetadata(account, metadata))
	if err != nil {
		return "", fmt.Errorf("failed to marshal session metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(totalBytes, 10))
	req.Header.Set("X-Upload-Content-Type", "video/*")

	resp, err := y.do(ctx, req, account)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := y.categorize(resp); err != nil {
		return "", err
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", fmt.Errorf("%w: session response missing Location header", shared.ErrTransient)
	}
	y.RegisterSession(loc, account)
	return loc, nil
}

// SendChunk transmits chunk at offset within the session.
func (y *YouTubeService) SendChunk(ctx context.Context, sessionToken string, offset int64, chunk []byte, totalBytes int64) (ChunkResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionToken, bytes.NewReader(chunk))
	if err != nil {
		return ChunkResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = int64(len(chunk))
	if len(chunk) == 0 {
		// Status probe: asks the session to report or finalize.
		req.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", totalBytes))
	} else {
		req.Header.Set("Content-Range",
			fmt.Sprintf("bytes %d-%d/%d", offset, offset+int64(len(chunk))-1, totalBytes))
	}

	resp, err := y.do(ctx, req, y.sessionAccount(sessionToken))
	if err != nil {
		return ChunkResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == statusResumeIncomplete {
		confirmed := parseRangeEnd(resp.Header.Get("Range"))
		if confirmed < 0 {
			confirmed = offset + int64(len(chunk))
		}
		return ChunkResult{ConfirmedOffset: confirmed}, nil
	}

	if err := y.categorize(resp); err != nil {
		return ChunkResult{}, err
	}

	// 200 or 201: the upload is complete and the body carries the resource.
	var resource struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&resource); err != nil {
		return ChunkResult{}, fmt.Errorf("%w: failed to decode completion response: %v", shared.ErrTransient, err)
	}
	y.forgetSession(sessionToken)
	return ChunkResult{ConfirmedOffset: totalBytes, Done: true, RemoteID: resource.ID}, nil
}

// QueryConfirmedOffset asks the session how many bytes it has. Used after a
// crash, when local bookkeeping may be stale.
func (y *YouTubeService) QueryConfirmedOffset(ctx context.Context, sessionToken string, totalBytes int64) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionToken, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", totalBytes))

	resp, err := y.do(ctx, req, y.sessionAccount(sessionToken))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == statusResumeIncomplete {
		if confirmed := parseRangeEnd(resp.Header.Get("Range")); confirmed >= 0 {
			return confirmed, nil
		}
		return 0, nil
	}

	if err := y.categorize(resp); err != nil {
		return 0, err
	}
	return totalBytes, nil
}

// do paces, authenticates, and executes one request. Network-level failures
// are transient; context cancellation propagates untouched.
func (y *YouTubeService) do(ctx context.Context, req *http.Request, account *models.Account) (*http.Response, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if account != nil && y.creds != nil {
		token, err := y.creds.Token(ctx, account)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := y.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrTransient, err)
	}
	return resp, nil
}

// categorize maps an HTTP failure onto the shared error kinds. 2xx passes.
func (y *YouTubeService) categorize(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var apiErr struct {
		Error struct {
			Message string `json:"message"`
			Errors  []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&apiErr)

	reason := ""
	if len(apiErr.Error.Errors) > 0 {
		reason = apiErr.Error.Errors[0].Reason
	}
	detail := apiErr.Error.Message
	if detail == "" {
		detail = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrCredentialExpired, detail)
	case reason == "quotaExceeded" || reason == "uploadLimitExceeded" || reason == "dailyLimitExceeded":
		return fmt.Errorf("%w: %s", shared.ErrQuotaExhausted, detail)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", shared.ErrTransient, detail)
	default:
		return fmt.Errorf("%w: %s (%s)", shared.ErrValidation, detail, reason)
	}
}

// parseRangeEnd extracts the confirmed byte count from a "Range: bytes=0-N"
// header; the next offset to send is N+1. Returns -1 when absent/malformed.
func parseRangeEnd(header string) int64 {
	if header == "" {
		return -1
	}
	idx := strings.LastIndex(header, "-")
	if idx < 0 {
		return -1
	}
	end, err := strconv.ParseInt(header[idx+1:], 10, 64)
	if err != nil {
		return -1
	}
	return end + 1
}
