package graphstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Neo4jClient talks to the Neo4j HTTP transaction API. Every write is a
// MERGE on a deterministic key, so any statement is safe to repeat after a
// partial failure.
type Neo4jClient struct {
	baseURL    string
	database   string
	username   string
	password   string
	httpClient *http.Client
}

func NewNeo4jClient(baseURL, database, username, password string) *Neo4jClient {
	return &Neo4jClient{
		baseURL:  baseURL,
		database: database,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type statement struct {
	Statement  string         `json:"statement"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type txRequest struct {
	Statements []statement `json:"statements"`
}

type txResponse struct {
	Results []struct {
		Columns []string `json:"columns"`
		Data    []struct {
			Row []json.RawMessage `json:"row"`
		} `json:"data"`
	} `json:"results"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// HealthCheck verifies the Neo4j HTTP endpoint is reachable.
func (c *Neo4jClient) HealthCheck(ctx context.Context) error {
	_, err := c.run(ctx, statement{Statement: "RETURN 1"})
	return err
}

// run executes the statements in one auto-commit transaction and returns
// the response. Cypher errors surface as Go errors with the Neo4j error code.
func (c *Neo4jClient) run(ctx context.Context, stmts ...statement) (*txResponse, error) {
	data, err := json.Marshal(txRequest{Statements: stmts})
	if err != nil {
		return nil, fmt.Errorf("marshal tx request: %w", err)
	}

	url := c.baseURL + "/db/" + c.database + "/tx/commit"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create tx request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("neo4j tx: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tx response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("neo4j tx: status %d: %s", resp.StatusCode, string(body))
	}

	var out txResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode tx response: %w", err)
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("neo4j tx: %s: %s", out.Errors[0].Code, out.Errors[0].Message)
	}
	return &out, nil
}
