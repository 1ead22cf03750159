package app

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/tendant/blog-auth/internal/audit"
	"github.com/tendant/blog-auth/internal/config"
	"github.com/tendant/blog-auth/pkg/repository"
)

// newAuditSink builds the sink named by each AUDIT_SINK entry. A single sink
// is returned as is; several are fanned out through audit.MultiSink.
func newAuditSink(cfg config.AuditConfig, db *sql.DB, logger *slog.Logger) (audit.Sink, []io.Closer, error) {
	var (
		sinks   audit.MultiSink
		closers []io.Closer
	)

	for _, name := range cfg.Sinks {
		switch name {
		case config.AuditSinkPostgres:
			sinks = append(sinks, repository.NewAuditRepository(db))
		case config.AuditSinkLog:
			sinks = append(sinks, audit.NewLogSink(logger))
		case config.AuditSinkAMQP:
			s, err := audit.NewAMQPSink(cfg.AMQPURL, cfg.AMQPQueue)
			if err != nil {
				closeAll(closers)
				return nil, nil, err
			}
			sinks = append(sinks, s)
			closers = append(closers, s)
		case config.AuditSinkKafka:
			s := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
			sinks = append(sinks, s)
			closers = append(closers, s)
		default:
			closeAll(closers)
			return nil, nil, fmt.Errorf("unknown audit sink %q", name)
		}
		logger.Info("audit sink enabled", "sink", name)
	}

	switch len(sinks) {
	case 0:
		return audit.NewLogSink(logger), closers, nil
	case 1:
		return sinks[0], closers, nil
	default:
		return sinks, closers, nil
	}
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		c.Close()
	}
}
