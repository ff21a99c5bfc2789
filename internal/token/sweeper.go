package token

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// StartSweeper schedules PurgeExpired according to a cron spec such as
// "@hourly" or "*/15 * * * *". Stop the returned scheduler on shutdown.
func (s *Service) StartSweeper(spec string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, s.sweep); err != nil {
		return nil, fmt.Errorf("scheduling token sweep %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}

func (s *Service) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.refreshTimeout*6)
	defer cancel()
	n, err := s.PurgeExpired(ctx)
	if err != nil {
		s.log.WithError(err).Error("token sweep failed")
		return
	}
	if n > 0 {
		s.log.WithField("removed", n).Info("token sweep removed expired tokens")
	}
}
