// Package client is the game-side counterpart of the HTTP transport: it fetches
// questions, submits answers and talks to the leaderboard routes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/hashicorp/go-cleanhttp"
	log "github.com/sirupsen/logrus"

	"normalz-service/internal/domain"
)

var (
	// ErrInvalidRequest covers a malformed URL or body, and 4xx answers.
	ErrInvalidRequest = errors.NewPlain("invalid request")
	// ErrNetworkFailure is transient: transport errors and 5xx answers.
	ErrNetworkFailure = errors.NewPlain("network failure")
	// ErrDecodeFailure means the server answered with a body we cannot use.
	ErrDecodeFailure = errors.NewPlain("decode failure")
)

const DefaultEndpoint = "/normalzGame"

// Question is the fetched question with the tally at fetch time.
type Question struct {
	QuestionID   string
	Prompt       string
	Options      []string
	AnswerCounts map[string]int
	TotalAnswers int
}

// AnswerResult is the authoritative post-vote tally returned by a submit.
type AnswerResult struct {
	Message         string
	Outcome         domain.Outcome
	NewAnswerCounts map[string]int
	NewTotal        int
	Replayed        bool
}

type Client struct {
	baseURL  string
	endpoint string
	http     *http.Client
}

// New returns a client using a pooled go-cleanhttp transport.
func New(baseURL, endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	hc := cleanhttp.DefaultPooledClient()
	if timeout > 0 {
		hc.Timeout = timeout
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		endpoint: "/" + strings.TrimLeft(endpoint, "/"),
		http:     hc,
	}
}

// HTTPClient exposes the underlying client, mainly for test transports.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

type questionPayload struct {
	QuestionID   *string         `json:"questionId"`
	Prompt       string          `json:"prompt"`
	Options      []string        `json:"options"`
	AnswerCounts *map[string]int `json:"answerCounts"`
	TotalAnswers *int            `json:"totalAnswers"`
}

// FetchQuestion asks for the next question, avoiding exclude when possible.
// Missing answerCounts decode as empty and a missing totalAnswers as zero.
func (c *Client) FetchQuestion(ctx context.Context, exclude string) (Question, error) {
	query := url.Values{}
	if exclude != "" {
		query.Set("exclude", exclude)
	}
	raw, err := c.do(ctx, http.MethodGet, c.endpoint, query, nil)
	if err != nil {
		return Question{}, err
	}

	var p questionPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.QuestionID == nil || p.Options == nil {
		return Question{}, decodeFailure(raw, err, "question")
	}
	q := Question{
		QuestionID:   *p.QuestionID,
		Prompt:       p.Prompt,
		Options:      p.Options,
		AnswerCounts: map[string]int{},
	}
	if p.AnswerCounts != nil && *p.AnswerCounts != nil {
		q.AnswerCounts = *p.AnswerCounts
	}
	if p.TotalAnswers != nil {
		q.TotalAnswers = *p.TotalAnswers
	}
	return q, nil
}

type submitPayload struct {
	Message         *string        `json:"message"`
	Outcome         domain.Outcome `json:"outcome"`
	NewAnswerCounts map[string]int `json:"newAnswerCounts"`
	NewTotal        int            `json:"newTotal"`
	Replayed        bool           `json:"replayed"`
}

// SubmitAnswer sends the choice. submissionID may be empty; when set, retries of the
// same submission are counted once. A response without "message" is a decode failure.
func (c *Client) SubmitAnswer(ctx context.Context, questionID, selectedOption, submissionID string) (AnswerResult, error) {
	body := map[string]string{"questionId": questionID, "selectedOption": selectedOption}
	if submissionID != "" {
		body["submissionId"] = submissionID
	}
	log.WithFields(log.Fields{"question_id": questionID, "option": selectedOption}).Debug("submitting answer")

	raw, err := c.do(ctx, http.MethodPost, c.endpoint, nil, body)
	if err != nil {
		return AnswerResult{}, err
	}

	var p submitPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Message == nil {
		return AnswerResult{}, decodeFailure(raw, err, "answer response")
	}
	res := AnswerResult{
		Message:         *p.Message,
		Outcome:         p.Outcome,
		NewAnswerCounts: p.NewAnswerCounts,
		NewTotal:        p.NewTotal,
		Replayed:        p.Replayed,
	}
	if res.NewAnswerCounts == nil {
		res.NewAnswerCounts = map[string]int{}
	}
	return res, nil
}

// SubmitScore implements app.Leaderboard against the server's leaderboard routes.
func (c *Client) SubmitScore(ctx context.Context, playerID string, value int, leaderboardID string) error {
	_, err := c.do(ctx, http.MethodPut, "/leaderboards/"+url.PathEscape(leaderboardID)+"/scores", nil,
		map[string]interface{}{"playerId": playerID, "value": value})
	return err
}

func (c *Client) Top(ctx context.Context, leaderboardID string, limit int) ([]domain.LeaderboardEntry, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	raw, err := c.do(ctx, http.MethodGet, "/leaderboards/"+url.PathEscape(leaderboardID), query, nil)
	if err != nil {
		return nil, err
	}
	var p struct {
		Entries []domain.LeaderboardEntry `json:"entries"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, decodeFailure(raw, err, "leaderboard")
	}
	return p.Entries, nil
}

// Ping checks the server health route.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, error) {
	target, err := url.Parse(c.baseURL + path)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, errors.WithDetails(ErrInvalidRequest, "url", c.baseURL+path)
	}
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, errors.WithDetails(ErrInvalidRequest, "reason", err.Error())
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, errors.WithDetails(ErrInvalidRequest, "reason", err.Error())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.WithError(err).WithField("url", target.String()).Warn("request failed")
		return nil, errors.WithDetails(ErrNetworkFailure, "reason", err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithDetails(ErrNetworkFailure, "reason", err.Error())
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, errors.WithDetails(ErrNetworkFailure, "status", resp.StatusCode, "code", errorCode(raw))
	case resp.StatusCode >= 400:
		return nil, errors.WithDetails(ErrInvalidRequest, "status", resp.StatusCode, "code", errorCode(raw))
	}
	return raw, nil
}

func errorCode(raw []byte) string {
	var body struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(raw, &body)
	return body.Code
}

func decodeFailure(raw []byte, err error, what string) error {
	log.WithField("payload", string(raw)).WithError(err).Errorf("error decoding %s", what)
	return errors.WithDetails(ErrDecodeFailure, "payload", string(raw))
}
