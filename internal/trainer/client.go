package trainer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/logger"
)

const (
	// RequestTimeout bounds a single call to the training service.
	RequestTimeout = 30 * time.Second

	DefaultPollInterval = 2 * time.Second

	// maxPollFailures is how many consecutive failed status polls are tolerated.
	maxPollFailures = 5
)

// Remote job states reported by the training service.
const (
	remoteQueued    = "queued"
	remoteRunning   = "running"
	remoteSucceeded = "succeeded"
	remoteFailed    = "failed"
)

type submitResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	Status string        `json:"status"`
	Epoch  int           `json:"epoch"`
	Epochs int           `json:"epochs"`
	Error  string        `json:"error,omitempty"`
	Result *remoteResult `json:"result,omitempty"`
}

type remoteResult struct {
	ResultsDir      string      `json:"results_dir"`
	Top1            *float64    `json:"top1"`
	Classes         []string    `json:"classes"`
	ConfusionMatrix [][]float64 `json:"confusion_matrix"`
}

// Client is a Trainable backed by an HTTP training service. The service
// accepts POST {base}/train and reports progress at GET {base}/train/{id}.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	log          logger.Logger
}

// NewClient returns a client for the service at baseURL. A nil httpClient
// uses one with RequestTimeout.
func NewClient(baseURL string, httpClient *http.Client, pollInterval time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: RequestTimeout}
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   httpClient,
		pollInterval: pollInterval,
		log:          GetLogger(),
	}
}

// Train submits req and polls until the service reports a terminal state,
// forwarding each new epoch to onEpoch.
func (c *Client) Train(ctx context.Context, req Request, onEpoch EpochFunc) (*Result, error) {
	start := time.Now()
	id, err := c.submit(ctx, req)
	if err != nil {
		return nil, errors.ExternalFailure("trainer", err)
	}
	log := c.log.With(logger.String("remote_id", id), logger.Int64("run_id", int64(req.RunID)))
	log.Info("training submitted", logger.String("model", req.ModelName), logger.Int("epochs", req.Epochs))

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	lastEpoch := 0
	failures := 0
	for {
		st, err := c.status(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			log.Warn("training status poll failed", logger.Int("attempt", failures), logger.Error(err))
			if failures >= maxPollFailures {
				return nil, errors.ExternalFailure("trainer", err)
			}
		} else {
			failures = 0
			total := st.Epochs
			if total <= 0 {
				total = req.Epochs
			}
			for e := lastEpoch + 1; e <= min(st.Epoch, total); e++ {
				if onEpoch != nil {
					if err := onEpoch(ctx, e, total); err != nil {
						return nil, err
					}
				}
				lastEpoch = e
			}

			switch st.Status {
			case remoteSucceeded:
				log.Info("training finished", logger.Duration("elapsed", time.Since(start)))
				return c.result(st.Result, req)
			case remoteFailed:
				msg := st.Error
				if msg == "" {
					msg = "training service reported failure"
				}
				return nil, errors.ExternalFailure("trainer", errors.NewStd(msg))
			case remoteQueued, remoteRunning:
			default:
				return nil, errors.ExternalFailure("trainer", fmt.Errorf("unknown remote status %q", st.Status))
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) result(r *remoteResult, req Request) (*Result, error) {
	if r == nil {
		return nil, errors.ExternalFailure("trainer", errors.NewStd("training service returned no result"))
	}
	out := &Result{ResultsDir: r.ResultsDir, AccuracyTop1: r.Top1}
	if out.ResultsDir == "" {
		out.ResultsDir = req.ResultsDir
	}
	if len(r.ConfusionMatrix) > 0 {
		cm, err := NewConfusionMatrix(r.Classes, r.ConfusionMatrix)
		if err != nil {
			return nil, errors.ExternalFailure("trainer", err)
		}
		out.Confusion = cm
	}
	return out, nil
}

func (c *Client) submit(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/train", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var out submitResponse
	if err := c.do(httpReq, http.StatusAccepted, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("training service returned an empty job id")
	}
	return out.ID, nil
}

func (c *Client) status(ctx context.Context, id string) (*statusResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/train/"+id, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	var out statusResponse
	if err := c.do(httpReq, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends req and decodes a JSON body. Both 200 and the expected status are accepted.
func (c *Client) do(req *http.Request, want int, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != want && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: received %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error unmarshaling response: %w", err)
	}
	return nil
}
