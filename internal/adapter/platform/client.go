package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"vending-payout-console/internal/core/domain"
	"vending-payout-console/internal/core/ports"
	"vending-payout-console/pkg/apperror"

	"github.com/rs/zerolog"
)

// duplicateSubmissionCode is the remote platform's idempotency-rejection
// code: a matching mutating request is already accepted or in flight.
// Classification keys on this code, never on the message text.
const duplicateSubmissionCode = 1007

// Client implements ports.Transport against the remote platform's RPC
// surface. Each method is POSTed to {base}/rpc/{method} with the canonical
// params as body and the signature material in headers.
type Client struct {
	sandboxURL string
	liveURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new platform transport. Per-call deadlines come from
// the caller's context; the embedded client carries no timeout of its own.
func NewClient(sandboxURL, liveURL string, log zerolog.Logger) *Client {
	return &Client{
		sandboxURL: sandboxURL,
		liveURL:    liveURL,
		httpClient: &http.Client{},
		log:        log,
	}
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Do dispatches one signed request and returns the raw result payload.
// Remote rejections come back classified: the duplicate-submission code
// maps to a DuplicateSubmission error, everything else to a Remote error
// carrying the remote message verbatim.
func (c *Client) Do(ctx context.Context, layer domain.Layer, req *ports.TransportRequest) (json.RawMessage, error) {
	base := c.sandboxURL
	if layer == domain.LayerLive {
		base = c.liveURL
	}

	body, err := json.Marshal(req.Params)
	if err != nil {
		return nil, fmt.Errorf("marshal rpc params: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/rpc/"+req.Method, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rpc request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Signer-Id", req.Signature.SignerID)
	httpReq.Header.Set("X-Key-Fingerprint", req.Signature.KeyFingerprint)
	httpReq.Header.Set("X-Signature", req.Signature.Value)
	httpReq.Header.Set("X-Signature-Timestamp", strconv.FormatInt(req.Signature.Timestamp, 10))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Deadline and cancellation errors pass through for the gateway
		// to classify.
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rpc response: %w", err)
	}

	var envelope rpcResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, apperror.ErrRemote(fmt.Sprintf("unparsable response (status %d)", resp.StatusCode))
	}

	if envelope.Error != nil {
		c.log.Warn().
			Str("method", req.Method).
			Str("layer", string(layer)).
			Int("remote_code", envelope.Error.Code).
			Int("status", resp.StatusCode).
			Msg("remote platform rejected call")
		if envelope.Error.Code == duplicateSubmissionCode {
			return nil, apperror.New(apperror.CodeDuplicateSubmission, envelope.Error.Message, http.StatusConflict)
		}
		return nil, apperror.ErrRemote(envelope.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperror.ErrRemote(fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	return envelope.Result, nil
}
