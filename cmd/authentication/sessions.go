package main

import (
	"github.com/gartstein/maintenance/internal/maintenance/auth"
	"go.uber.org/zap"
)

// logSessions writes an audit line per session transition until the stream closes.
func logSessions(stream <-chan auth.SessionEvent, logger *zap.Logger) {
	logger = logger.Named("sessions")
	for ev := range stream {
		logger.Info("Session transition",
			zap.String("event_type", string(ev.Type)),
			zap.String("profile_id", ev.Session.Profile.ID.String()),
			zap.String("token_id", ev.Session.TokenID),
			zap.Time("expires_at", ev.Session.ExpiresAt),
		)
	}
}
