// Package heartbeat publishes a periodic liveness message so a monitor can
// tell a quiet sensor from a hung firmware.
package heartbeat

import (
	"context"
	"time"

	"dht11-go/bus"
	"dht11-go/x/timex"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	topicHeartbeat       = bus.T("sys", "heartbeat")
)

const defaultInterval = 10 * time.Second

// Beat is the payload on sys/heartbeat.
type Beat struct {
	Seq     uint32 `json:"seq"`
	UptimeS int64  `json:"uptime_s"`
	TS      int64  `json:"ts_ms"`
}

type Service struct {
	Interval time.Duration // 0 => defaultInterval
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	interval := s.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	start := time.Now()
	var seq uint32
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-tick.C:
			seq++
			conn.Publish(conn.NewMessage(topicHeartbeat, Beat{
				Seq:     seq,
				UptimeS: int64(t.Sub(start) / time.Second),
				TS:      timex.NowMs(),
			}, false))
		case msg := <-cfgSub.Channel():
			if d := parseInterval(msg.Payload); d > 0 {
				tick.Reset(d)
			}
		}
	}
}

// parseInterval reads {"interval": seconds}; YAML yields ints, JSON floats.
func parseInterval(p any) time.Duration {
	m, ok := p.(map[string]any)
	if !ok {
		return 0
	}
	switch v := m["interval"].(type) {
	case int:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	}
	return 0
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	go s.serviceLoop(ctx, conn)
}
