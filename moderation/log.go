package moderation

import (
	"context"
	"flash-chat/contract"
	"flash-chat/domain"
	"log/slog"
	"maps"

	"github.com/abadojack/whatlanggo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var maskedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "flashchat_moderation_masked_total",
	Help: "Messages whose body was masked before being written, by detected language",
}, []string{"lang"})

// Log masks the body of every message written through it. Reads are passed
// through untouched: what is stored is already clean.
type Log struct {
	contract.ILog
	filter *Filter
	log    *slog.Logger
}

func NewLog(next contract.ILog, filter *Filter, log *slog.Logger) *Log {
	return &Log{ILog: next, filter: filter, log: log}
}

func (l *Log) Write(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if body, ok := fields[domain.BodyField].(string); ok {
		if masked, words := l.filter.Mask(body); len(words) > 0 {
			fields = maps.Clone(fields)
			fields[domain.BodyField] = masked
			lang := language(body)
			maskedMessages.WithLabelValues(lang).Inc()
			l.log.Debug("Message masked", "collection", collection, "lang", lang, "words", words)
		}
	}
	return l.ILog.Write(ctx, collection, fields)
}

// language returns the ISO 639-1 code of the text, "und" when unsure.
func language(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return "und"
	}
	if code := info.Lang.Iso6391(); code != "" {
		return code
	}
	return "und"
}
