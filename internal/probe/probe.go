// Package probe runs an optional ICMP pre-check over the inventory. The
// outcome is informational: reachability from the operator host says nothing
// about reachability through the jump host, so collection proceeds either
// way.
package probe

import (
	"context"
	"sync"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"

	"github.com/zumanm1/netaudit/pkg/models"
)

// Result is the outcome of probing one device.
type Result struct {
	Hostname string
	Address  string
	Alive    bool
	RTT      time.Duration
}

// Prober pings inventory devices with bounded concurrency.
type Prober struct {
	timeout     time.Duration
	count       int
	concurrency int
	logger      *zap.Logger

	// pingHost is swappable in tests.
	pingHost func(ctx context.Context, address string) (bool, time.Duration)
}

// NewProber creates a prober. Concurrency below 1 is raised to 1.
func NewProber(timeout time.Duration, concurrency int, logger *zap.Logger) *Prober {
	if concurrency < 1 {
		concurrency = 1
	}
	p := &Prober{
		timeout:     timeout,
		count:       1,
		concurrency: concurrency,
		logger:      logger,
	}
	p.pingHost = p.icmpPing
	return p
}

// Run probes every device and returns results keyed by hostname.
func (p *Prober) Run(ctx context.Context, devices []*models.DeviceRecord) map[string]Result {
	results := make(map[string]Result, len(devices))
	var mu sync.Mutex

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	for _, device := range devices {
		select {
		case <-ctx.Done():
			return results
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(device *models.DeviceRecord) {
			defer wg.Done()
			defer func() { <-sem }()

			alive, rtt := p.pingHost(ctx, device.Address)
			mu.Lock()
			results[device.Hostname] = Result{
				Hostname: device.Hostname,
				Address:  device.Address,
				Alive:    alive,
				RTT:      rtt,
			}
			mu.Unlock()

			if !alive {
				p.logger.Info("device did not answer ICMP, collecting anyway",
					zap.String("hostname", device.Hostname),
					zap.String("address", device.Address),
				)
			}
		}(device)
	}

	wg.Wait()
	return results
}

// icmpPing pings a single address and reports liveness and average RTT.
func (p *Prober) icmpPing(ctx context.Context, address string) (bool, time.Duration) {
	pinger, err := probing.NewPinger(address)
	if err != nil {
		p.logger.Debug("failed to create pinger", zap.String("address", address), zap.Error(err))
		return false, 0
	}

	pinger.Count = p.count
	pinger.Timeout = p.timeout

	done := make(chan struct{})
	go func() {
		defer close(done)
		if runErr := pinger.Run(); runErr != nil {
			p.logger.Debug("ping failed", zap.String("address", address), zap.Error(runErr))
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		pinger.Stop()
		return false, 0
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv > 0 {
		return true, stats.AvgRtt
	}
	return false, 0
}
