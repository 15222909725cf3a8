// Package jsonpeer is a minimal concrete dagsync.PeerService over a TCP
// connection, speaking line-delimited JSON instead of kaspad's own
// protobuf-over-gRPC wire format (netadapter/server/grpcserver). It exists
// so cmd/dagsyncd has something real to dial; a production deployment
// would swap it for a proper wire adapter without touching domain/dagsync.
package jsonpeer

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"time"

	"github.com/kaspanet/dagsync/domain/consensus/model/externalapi"
	"github.com/kaspanet/dagsync/domain/dagsync"
	"github.com/kaspanet/dagsync/logger"
	"github.com/pkg/errors"
)

var log, _ = logger.Get(logger.SubsystemTags.XPRT)

// request is the single line sent to open a stream.
type request struct {
	Targets  []externalapi.DomainHash `json:"targets"`
	Known    []externalapi.DomainHash `json:"known"`
	MaxDepth uint64                   `json:"maxDepth"`
}

// wireJustification mirrors dagsync.BlockJustification for the wire.
type wireJustification struct {
	LatestBlockHash externalapi.DomainHash `json:"latestBlockHash"`
}

// wireSummary mirrors dagsync.BlockSummary for the wire. A zero-value
// Done response (no hash) signals the end of the stream, the JSON
// equivalent of gRPC's End-Of-Stream.
type wireSummary struct {
	Done           bool                     `json:"done,omitempty"`
	BlockHash      *externalapi.DomainHash  `json:"blockHash,omitempty"`
	ParentHashes   []externalapi.DomainHash `json:"parentHashes,omitempty"`
	Justifications []wireJustification      `json:"justifications,omitempty"`
	Rank           uint64                   `json:"rank,omitempty"`
}

func toWire(s *dagsync.BlockSummary) wireSummary {
	w := wireSummary{BlockHash: s.BlockHash, Rank: s.Header.Rank}
	for _, p := range s.ParentHashes {
		w.ParentHashes = append(w.ParentHashes, *p)
	}
	for _, j := range s.Justifications {
		w.Justifications = append(w.Justifications, wireJustification{LatestBlockHash: *j.LatestBlockHash})
	}
	return w
}

func fromWire(w wireSummary) *dagsync.BlockSummary {
	s := &dagsync.BlockSummary{
		BlockHash: w.BlockHash,
		Header:    &dagsync.BlockHeader{Rank: w.Rank},
	}
	for i := range w.ParentHashes {
		s.ParentHashes = append(s.ParentHashes, &w.ParentHashes[i])
	}
	for i := range w.Justifications {
		j := w.Justifications[i]
		s.Justifications = append(s.Justifications, &dagsync.BlockJustification{LatestBlockHash: &j.LatestBlockHash})
	}
	return s
}

// Peer dials addr fresh for every StreamAncestorBlockSummaries call - this
// protocol has no notion of a persistent session beyond one request/stream
// pair, unlike netadapter's long-lived router connections.
type Peer struct {
	addr          string
	dialTimeout   time.Duration
}

// NewPeer returns a Peer that dials addr for every stream it opens.
func NewPeer(addr string) *Peer {
	return &Peer{addr: addr, dialTimeout: 10 * time.Second}
}

// StreamAncestorBlockSummaries implements dagsync.PeerService.
func (p *Peer) StreamAncestorBlockSummaries(ctx context.Context, targets, known []*externalapi.DomainHash,
	maxDepth uint64) (dagsync.SummaryStream, error) {

	dialer := net.Dialer{Timeout: p.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing peer %s", p.addr)
	}

	req := request{MaxDepth: maxDepth}
	for _, t := range targets {
		req.Targets = append(req.Targets, *t)
	}
	for _, k := range known {
		req.Known = append(req.Known, *k)
	}

	enc := json.NewEncoder(conn)
	if err := enc.Encode(req); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "sending stream request")
	}

	log.Debugf("opened ancestor stream to %s for %d target(s)", p.addr, len(targets))
	return &stream{conn: conn, decoder: json.NewDecoder(bufio.NewReader(conn))}, nil
}

// stream implements dagsync.SummaryStream over conn.
type stream struct {
	conn    net.Conn
	decoder *json.Decoder
}

// Recv implements dagsync.SummaryStream.
func (s *stream) Recv(ctx context.Context) (*dagsync.BlockSummary, error) {
	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetReadDeadline(deadline)
	}

	var w wireSummary
	if err := s.decoder.Decode(&w); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "decoding block summary")
	}
	if w.Done {
		// The peer's own end-of-stream marker, sent ahead of actually
		// closing the connection (see server.go's handleConn).
		return nil, io.EOF
	}
	return fromWire(w), nil
}

// Close implements dagsync.SummaryStream.
func (s *stream) Close() error {
	return errors.WithStack(s.conn.Close())
}
