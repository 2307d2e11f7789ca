package main

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/rs/zerolog/log"
)

// notifySystemd reports state to systemd. Outside a notify unit it is a no-op.
func notifySystemd(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn().Err(err).Str("state", state).Msg("sd_notify failed")
		return
	}
	if sent {
		log.Debug().Str("state", state).Msg("sd_notify sent")
	}
}

// runWatchdog pings the systemd watchdog at half its configured interval
// until ctx is cancelled.
func runWatchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			notifySystemd("WATCHDOG=1")
		}
	}
}
