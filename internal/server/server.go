// Package server exposes a node over HTTP/JSON so collaborators on the same
// host (agents, dashboards, the CLI) can append, merge, share and query.
package server

import (
	"log/slog"

	"github.com/alfredjeanlab/clawnet/internal/node"
)

// Server serves one node.
type Server struct {
	node   *node.Node
	stream *EventStream
	logger *slog.Logger
}

// New returns a server for n. stream should be the publisher the node was
// built with so SSE clients see its events; nil disables the stream's feed
// but the endpoint still answers.
func New(n *node.Node, stream *EventStream, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if stream == nil {
		stream = NewEventStream(nil, logger)
	}
	return &Server{node: n, stream: stream, logger: logger}
}
