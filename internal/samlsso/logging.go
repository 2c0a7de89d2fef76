package samlsso

import "go.uber.org/zap"

// decisionTags is the structured tag every decision-point log carries,
// mirroring the source system's ["debug","security","saml"] convention as
// zap structured data rather than a prose prefix.
var decisionTags = zap.Strings("tags", []string{"debug", "security", "saml"})

func logDecision(log *zap.Logger, msg string, fields ...zap.Field) {
	if log == nil {
		return
	}
	log.Debug(msg, append([]zap.Field{decisionTags}, fields...)...)
}
