// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package client

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/req"
	"golang.org/x/crypto/nacl/box"

	// Register the TCP transport with mangos.
	_ "go.nanomsg.org/mangos/v3/transport/tcp"

	"github.com/pingpongsneak/bamboo/errors"
	"github.com/pingpongsneak/bamboo/record"
)

// SealedClient speaks the node's encrypted request/reply protocol over an
// NNG socket.  Each request packet is
//
//	len(pk) || pk || len(cipher) || cipher
//
// where pk is the wallet's reply key and cipher seals the msgpack-encoded
// request to the node's public key.  Replies are unwrapped symmetrically.
// Length prefixes are 32-bit little-endian.
type SealedClient struct {
	sock      mangos.Socket
	remotePub [32]byte
	pub       *[32]byte
	priv      *[32]byte
}

// sealedRequest is the msgpack body of one encrypted call.
type sealedRequest struct {
	Route  string `msgpack:"route"`
	Params []byte `msgpack:"params"`
}

// DialSealed connects to the node's NNG endpoint.  remotePub is the node's
// 33-byte advertised public key; the leading format byte is dropped and the
// remaining 32 bytes are the sealing key.
func DialSealed(addr string, remotePub []byte) (*SealedClient, error) {
	const op errors.Op = "client.DialSealed"
	if len(remotePub) != 33 {
		return nil, errors.E(op, errors.Config, "node public key must be 33 bytes")
	}
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.E(op, errors.Crypto, err)
	}
	sock, err := req.NewSocket()
	if err != nil {
		return nil, errors.E(op, errors.RPC, err)
	}
	if err := sock.Dial("tcp://" + addr); err != nil {
		return nil, errors.E(op, errors.RPC, err)
	}
	c := &SealedClient{sock: sock, pub: pub, priv: priv}
	copy(c.remotePub[:], remotePub[1:])
	return c, nil
}

// Close tears down the socket.
func (c *SealedClient) Close() error {
	return c.sock.Close()
}

func appendFrame(dst, payload []byte) []byte {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(payload)))
	dst = append(dst, n[:]...)
	return append(dst, payload...)
}

func readFrame(b []byte) (payload, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, errors.E(errors.Encoding, "short packet")
	}
	n := binary.LittleEndian.Uint32(b)
	b = b[4:]
	if uint32(len(b)) < n {
		return nil, nil, errors.E(errors.Encoding, "truncated packet")
	}
	return b[:n], b[n:], nil
}

// call seals one request, sends it, and unwraps the reply into result.
func (c *SealedClient) call(ctx context.Context, route string, params, result interface{}) error {
	const op errors.Op = "client.SealedClient.call"

	rawParams, err := msgpack.Marshal(params)
	if err != nil {
		return errors.E(op, errors.Encoding, err)
	}
	body, err := msgpack.Marshal(&sealedRequest{Route: route, Params: rawParams})
	if err != nil {
		return errors.E(op, errors.Encoding, err)
	}
	cipher, err := box.SealAnonymous(nil, body, &c.remotePub, rand.Reader)
	if err != nil {
		return errors.E(op, errors.Crypto, err)
	}

	packet := appendFrame(nil, c.pub[:])
	packet = appendFrame(packet, cipher)

	if deadline, ok := ctx.Deadline(); ok {
		c.sock.SetOption(mangos.OptionRecvDeadline, time.Until(deadline))
		c.sock.SetOption(mangos.OptionSendDeadline, time.Until(deadline))
	}
	if err := c.sock.Send(packet); err != nil {
		return errors.E(op, errors.RPC, err)
	}
	reply, err := c.sock.Recv()
	if err != nil {
		if ctx.Err() != nil {
			return errors.E(op, errors.Cancelled, ctx.Err())
		}
		return errors.E(op, errors.RPC, err)
	}

	// The leading frame repeats the peer key; the reply is sealed to our
	// own key, so only the cipher frame matters.
	_, rest, err := readFrame(reply)
	if err != nil {
		return errors.E(op, errors.RPC, err)
	}
	replyCipher, _, err := readFrame(rest)
	if err != nil {
		return errors.E(op, errors.RPC, err)
	}

	plain, ok := box.OpenAnonymous(nil, replyCipher, c.pub, c.priv)
	if !ok {
		return errors.E(op, errors.Crypto, "reply unseal failed")
	}
	if result != nil {
		if err := msgpack.Unmarshal(plain, result); err != nil {
			return errors.E(op, errors.RPC, errors.E(errors.Encoding, err))
		}
	}
	return nil
}

// Peer fetches the remote node's member descriptor over the sealed channel.
func (c *SealedClient) Peer(ctx context.Context) (*PeerInfo, error) {
	const op errors.Op = "client.SealedClient.Peer"
	info := new(PeerInfo)
	if err := c.call(ctx, "member/peer", nil, info); err != nil {
		return nil, errors.E(op, err)
	}
	return info, nil
}

// Outputs fetches the confidential outputs published under a payment id.
func (c *SealedClient) Outputs(ctx context.Context, paymentID string) ([]record.Vout, error) {
	const op errors.Op = "client.SealedClient.Outputs"
	var vouts []record.Vout
	if err := c.call(ctx, "transaction", paymentID, &vouts); err != nil {
		return nil, errors.E(op, err)
	}
	return vouts, nil
}

// Safeguard fetches a page of historical transactions used to populate the
// ring decoy pool.
func (c *SealedClient) Safeguard(ctx context.Context) ([]record.Transaction, error) {
	const op errors.Op = "client.SealedClient.Safeguard"
	var txs []record.Transaction
	if err := c.call(ctx, "safeguard", nil, &txs); err != nil {
		return nil, errors.E(op, err)
	}
	return txs, nil
}

// Submit posts a built transaction to the node.
func (c *SealedClient) Submit(ctx context.Context, tx *record.Transaction) (bool, error) {
	const op errors.Op = "client.SealedClient.Submit"
	var accepted bool
	if err := c.call(ctx, "transaction", tx, &accepted); err != nil {
		return false, errors.E(op, err)
	}
	return accepted, nil
}
