// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package client implements the wallet's client to the remote bamboo node:
// a plain HTTP surface for peer info, output retrieval, and transaction
// submission, and a sealed NNG request/reply variant for nodes that require
// encrypted transport.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pingpongsneak/bamboo/errors"
	"github.com/pingpongsneak/bamboo/record"
)

// PeerInfo describes the remote node as reported by GET /member/peer.
type PeerInfo struct {
	Advertise    string `json:"advertise"`
	BlockHeight  uint64 `json:"blockHeight"`
	Listening    string `json:"listening"`
	Name         string `json:"name"`
	Version      string `json:"version"`
	ClientID     string `json:"clientId"`
	PublicKey    string `json:"publicKey"`
	HTTPEndPoint string `json:"httpEndPoint"`
}

// Client is an HTTP client to a bamboo node.
type Client struct {
	http.Client
	url string
}

// New returns a client for the node at url, e.g. "http://127.0.0.1:7946".
func New(url string) *Client {
	return &Client{
		Client: http.Client{Timeout: 30 * time.Second},
		url:    url,
	}
}

func (c *Client) get(ctx context.Context, path string, resp interface{}) error {
	return c.do(ctx, http.MethodGet, path, resp, nil)
}

func (c *Client) post(ctx context.Context, path string, resp, req interface{}) error {
	return c.do(ctx, http.MethodPost, path, resp, req)
}

func (c *Client) do(ctx context.Context, method, path string, resp, req interface{}) error {
	var reqBody io.Reader
	if req != nil {
		body, err := json.Marshal(req)
		if err != nil {
			return errors.E(errors.Encoding, err)
		}
		reqBody = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.url+path, reqBody)
	if err != nil {
		return errors.E(errors.RPC, err)
	}
	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	reply, err := c.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return errors.E(errors.Cancelled, ctx.Err())
		}
		return errors.E(errors.RPC, err)
	}
	defer reply.Body.Close()

	if reply.StatusCode != http.StatusOK {
		return errors.E(errors.RPC, fmt.Errorf("%s %s: http %v %s", method,
			httpReq.URL.String(), reply.StatusCode, http.StatusText(reply.StatusCode)))
	}
	respBody, err := io.ReadAll(reply.Body)
	if err != nil {
		return errors.E(errors.RPC, err)
	}
	if resp != nil {
		if err := json.Unmarshal(respBody, resp); err != nil {
			return errors.E(errors.RPC, errors.E(errors.Encoding, err))
		}
	}
	return nil
}

// Peer fetches the remote node's member descriptor.
func (c *Client) Peer(ctx context.Context) (*PeerInfo, error) {
	const op errors.Op = "client.Peer"
	info := new(PeerInfo)
	if err := c.get(ctx, "/member/peer", info); err != nil {
		return nil, errors.E(op, err)
	}
	return info, nil
}

// Outputs fetches the confidential outputs published under a payment id.
func (c *Client) Outputs(ctx context.Context, paymentID string) ([]record.Vout, error) {
	const op errors.Op = "client.Outputs"
	var vouts []record.Vout
	if err := c.get(ctx, "/transaction/"+paymentID, &vouts); err != nil {
		return nil, errors.E(op, err)
	}
	return vouts, nil
}

// Safeguard fetches a page of historical transactions used to populate the
// ring decoy pool.
func (c *Client) Safeguard(ctx context.Context) ([]record.Transaction, error) {
	const op errors.Op = "client.Safeguard"
	var txs []record.Transaction
	if err := c.get(ctx, "/safeguard", &txs); err != nil {
		return nil, errors.E(op, err)
	}
	return txs, nil
}

// Submit posts a built transaction to the node and reports whether it was
// accepted.
func (c *Client) Submit(ctx context.Context, tx *record.Transaction) (bool, error) {
	const op errors.Op = "client.Submit"
	var accepted bool
	if err := c.post(ctx, "/transaction", &accepted, tx); err != nil {
		return false, errors.E(op, err)
	}
	return accepted, nil
}
