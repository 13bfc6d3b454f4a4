// Package events is the injected observer for gossip and merge side
// effects. Components publish typed events to a topic; observers are
// optional and never affect correctness.
package events

import (
	"context"

	"github.com/alfredjeanlab/clawnet/internal/model"
)

// Event topic constants
const (
	TopicGossipPublished = "clawnet.gossip.published"
	TopicGossipSynced    = "clawnet.gossip.synced"
	TopicGossipExpired   = "clawnet.gossip.expired"

	TopicLogMerged   = "clawnet.log.merged"
	TopicLogAppended = "clawnet.log.appended"

	TopicPatternQuarantined = "clawnet.pattern.quarantined"
)

// Event types

type GossipPublished struct {
	Peer      string `json:"peer"`
	MessageID string `json:"message_id"`
	Count     int    `json:"count"`
}

type GossipSynced struct {
	Peer     string   `json:"peer"`
	Received []string `json:"received"`
	Peers    int      `json:"peers"`
}

type GossipExpired struct {
	Peer    string `json:"peer"`
	Removed int    `json:"removed"`
}

type LogMerged struct {
	Peer       string `json:"peer"`
	RemotePeer string `json:"remote_peer"`
	Merged     int    `json:"merged"`
	Invalid    int    `json:"invalid"`
	Total      int    `json:"total"`
}

type LogAppended struct {
	Entry *model.LogEntry `json:"entry"`
}

type PatternQuarantined struct {
	Peer      string        `json:"peer"`
	From      string        `json:"from"`
	Direction string        `json:"direction"` // "inbound" or "outbound"
	Pattern   model.Pattern `json:"pattern"`
	Reasons   []string      `json:"reasons,omitempty"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
