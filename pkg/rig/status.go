package rig

import (
	"github.com/teslashibe/go-vigia/pkg/bulletin"
	"github.com/teslashibe/go-vigia/pkg/identity"
	"github.com/teslashibe/go-vigia/pkg/tracking"
	"github.com/teslashibe/go-vigia/pkg/web"
)

// Status returns the latest status snapshot with the sync state attached.
func (a *App) Status() web.Status {
	a.mu.RLock()
	st := a.status
	st.Captures = a.captures
	a.mu.RUnlock()

	if a.sync != nil {
		s := a.sync.Status()
		st.Sync = &s
	}
	return st
}

// Selection returns the displayed identity selection.
func (a *App) Selection() (identity.Selection, bool) {
	return a.matcher.Selection()
}

// Tuning returns the live tracking parameters.
func (a *App) Tuning() tracking.TuningParams {
	return a.controller.GetTuningParams()
}

// SetTuning applies p and returns the resulting parameters.
func (a *App) SetTuning(u tracking.TuningUpdate) tracking.TuningParams {
	a.controller.SetTuningParams(u)
	return a.controller.GetTuningParams()
}

// SyncStatus returns the bulletin sync state.
func (a *App) SyncStatus() bulletin.Status {
	if a.sync == nil {
		return bulletin.Status{}
	}
	return a.sync.Status()
}

// TriggerSync starts a bulletin refresh. It fails with web.ErrSyncDisabled
// when refresh is off and with bulletin.ErrInFlight when one is running.
func (a *App) TriggerSync() error {
	if a.sync == nil || a.config.NoSync {
		return web.ErrSyncDisabled
	}
	if !a.sync.Trigger(a.runCtx) {
		return bulletin.ErrInFlight
	}
	a.logger.Info("bulletin refresh triggered")
	return nil
}

var _ web.Backend = (*App)(nil)
