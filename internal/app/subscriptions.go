package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/dshills/gpupulse/internal/event"
	"github.com/dshills/gpupulse/internal/event/events"
)

// registerSubscriptions attaches the application's own bus listeners:
// live reactions to configuration changes and the alert log notifier.
func (app *Application) registerSubscriptions() error {
	app.subs = event.NewSubscriber(app.bus)

	if _, err := app.subs.SubscribeFunc(events.KindConfigChanged, app.handleConfigChange); err != nil {
		return err
	}
	if _, err := app.subs.SubscribeFunc(events.KindAlert, app.handleAlertEvent); err != nil {
		return err
	}
	return nil
}

// handleConfigChange applies the configuration keys that can change
// while running. Everything else takes effect on restart.
func (app *Application) handleConfigChange(_ context.Context, evt any) error {
	change, ok := evt.(events.ConfigChanged)
	if !ok {
		return nil
	}

	switch change.Key {
	case "pool.workers":
		workers, ok := asInt(change.NewValue)
		if !ok || workers <= 0 {
			app.logger.Warn("ignoring pool.workers change",
				zap.Any("value", change.NewValue))
			return nil
		}
		app.pool.Resize(workers)
		app.logger.Info("cpu pool resized", zap.Int("workers", workers))

	case "telemetry.interval", "telemetry.devices", "bus.queue_size", "bus.workers", "logging.level":
		app.logger.Info("configuration change takes effect on restart",
			zap.String("key", change.Key))
	}
	return nil
}

// handleAlertEvent mirrors raised and cleared alerts into the log.
// Subscribing to the parent kind covers both child kinds at once.
func (app *Application) handleAlertEvent(_ context.Context, evt any) error {
	switch a := evt.(type) {
	case events.AlertRaised:
		log := app.logger.Warn
		if a.Severity == events.SeverityCritical {
			log = app.logger.Error
		}
		log("alert raised",
			zap.String("rule", a.Rule),
			zap.Int("device", a.Device),
			zap.String("metric", a.Metric),
			zap.Float64("value", a.Value),
			zap.String("severity", string(a.Severity)),
			zap.String("incident", a.IncidentID),
			zap.String("message", a.Message),
		)
	case events.AlertCleared:
		app.logger.Info("alert cleared",
			zap.String("rule", a.Rule),
			zap.Int("device", a.Device),
			zap.Float64("value", a.Value),
			zap.String("incident", a.IncidentID),
		)
	}
	return nil
}

// asInt widens the numeric types a TOML reload can produce.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
