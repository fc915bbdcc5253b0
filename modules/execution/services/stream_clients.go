package services

import (
	"sort"
	"time"

	"github.com/labx-platform/testbed/pkg/repo"
)

type StreamClient struct {
	ID           string    `json:"id"`
	ExecutionID  string    `json:"executionId,omitempty"`
	TestCaseID   string    `json:"testCaseId,omitempty"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// StreamClients tracks websocket clients of the execution stream.
type StreamClients struct {
	clients *repo.SafeMap[string, StreamClient]
}

func NewStreamClients() *StreamClients {
	return &StreamClients{clients: repo.NewSafeMap[string, StreamClient]()}
}

func (s *StreamClients) Add(c StreamClient) {
	s.clients.Set(c.ID, c)
	streamClientsGauge.Set(float64(s.clients.Len()))
}

func (s *StreamClients) Remove(id string) {
	s.clients.Delete(id)
	streamClientsGauge.Set(float64(s.clients.Len()))
}

func (s *StreamClients) Touch(id string, at time.Time) {
	s.clients.Update(id, func(c StreamClient, ok bool) (StreamClient, bool) {
		if ok {
			c.LastActivity = at
		}
		return c, ok
	})
}

// ConnectedClients lists clients, oldest connection first.
func (s *StreamClients) ConnectedClients() []StreamClient {
	out := s.clients.Values()
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

func (s *StreamClients) ClientCount() int {
	return s.clients.Len()
}
