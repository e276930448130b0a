package device

import (
	"context"
	"errors"
	"time"
)

// Default liveness thresholds.
//
// The on-demand window (2m) and the sweep threshold (5m) are deliberately
// different. IsOnline answers "is it reporting right now" for dashboard
// queries; the sweep only flips the durable flag once a device has missed
// several report cycles. Unifying them would either make queries sluggish
// to notice outages or make the stored flag flap on a single missed report.
const (
	DefaultOnlineWindow  = 2 * time.Minute
	DefaultStaleAfter    = 5 * time.Minute
	DefaultSweepInterval = time.Minute
)

// Monitor infers device liveness from current-status timestamps.
//
// It serves two roles: the on-demand IsOnline check, and the background
// sweep that marks long-silent devices offline in storage.
type Monitor struct {
	status StatusRepository

	onlineWindow  time.Duration
	staleAfter    time.Duration
	sweepInterval time.Duration

	logger Logger
	now    func() time.Time
}

// NewMonitor creates a Monitor with the given thresholds.
// Non-positive durations fall back to the package defaults.
func NewMonitor(status StatusRepository, onlineWindow, staleAfter, sweepInterval time.Duration) *Monitor {
	if onlineWindow <= 0 {
		onlineWindow = DefaultOnlineWindow
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	return &Monitor{
		status:        status,
		onlineWindow:  onlineWindow,
		staleAfter:    staleAfter,
		sweepInterval: sweepInterval,
		now:           time.Now,
	}
}

// SetLogger sets an optional logger for sweep results.
func (m *Monitor) SetLogger(logger Logger) {
	m.logger = logger
}

// SetClock overrides the time source. Tests only.
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
}

// IsOnline reports whether the device's last reading is within the online
// window. A device that has never reported is offline. The check reads
// last_seen directly and does not consult the stored online flag, so it
// stays accurate between sweeps.
func (m *Monitor) IsOnline(ctx context.Context, deviceID string) (bool, error) {
	st, err := m.status.GetByDevice(ctx, deviceID)
	if errors.Is(err, ErrStatusNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return m.now().Sub(st.LastSeen) < m.onlineWindow, nil
}

// Run executes the stale sweep every sweep interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Sweep(ctx); err != nil && m.logger != nil {
				m.logger.Error("stale device sweep failed", "error", err)
			}
		}
	}
}

// Sweep marks every device offline whose last report is older than the
// stale threshold. Returns the number of devices flipped.
func (m *Monitor) Sweep(ctx context.Context) (int64, error) {
	cutoff := m.now().Add(-m.staleAfter)
	flipped, err := m.status.MarkStaleOffline(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if flipped > 0 && m.logger != nil {
		m.logger.Info("marked stale devices offline",
			"devices", flipped,
			"cutoff", cutoff.UTC().Format(time.RFC3339),
		)
	}
	return flipped, nil
}
