/*
 * Copyright (c) 2025 by the SlateDeck authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"slatedeck/internal/domain"
)

// Client talks to the team-sync API. The CLI uses it to mirror locally sent
// revisions to the shared log and to see what teammates have published.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing
// slash; it will be normalized.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	if dest == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dest)
}

// ListRevisions returns the shared revision log, most recent first.
func (c *Client) ListRevisions(ctx context.Context) ([]Revision, error) {
	var list []Revision
	if err := c.doJSON(ctx, http.MethodGet, "/v1/revisions", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// PushRevision publishes rev to the shared log. Pushing a revision id the
// server already knows refreshes that row rather than duplicating it.
func (c *Client) PushRevision(ctx context.Context, rev domain.SentRevision) (Revision, error) {
	payload := Revision{
		RevisionID: rev.RevisionID,
		ColorName:  rev.ColorName,
		FileName:   rev.FileName,
		SentDate:   rev.SentDate,
		SceneCount: rev.SceneCount,
		PageCount:  rev.PageCount,
	}
	var out Revision
	if err := c.doJSON(ctx, http.MethodPost, "/v1/revisions", payload, &out); err != nil {
		return Revision{}, err
	}
	return out, nil
}
