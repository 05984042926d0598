package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	domrepo "ExFuse/internal/domain/repository"
	pkgch "ExFuse/pkg/clickhouse"
	pkgkafka "ExFuse/pkg/kafka"
)

// SignalSchema creates the signal history table (idempotent).
func SignalSchema(table string) []string {
	return []string{fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			detected_at DateTime64(3),
			symbol      LowCardinality(String),
			kind        LowCardinality(String),
			subtype     LowCardinality(String),
			exchanges   String,
			magnitude   Float64,
			confidence  Float64,
			payload     String
		)
		ENGINE = MergeTree
		PARTITION BY toYYYYMM(detected_at)
		ORDER BY (symbol, kind, detected_at)
		TTL toDateTime(detected_at) + INTERVAL 30 DAY
	`, table)}
}

// ClickHouseSignalStore persists monitor-detected signals.
type ClickHouseSignalStore struct {
	db    *sql.DB
	table string
}

func NewClickHouseSignalStore(ch *pkgch.Client, table string) domrepo.SignalStore {
	return &ClickHouseSignalStore{db: ch.DB(), table: table}
}

func (s *ClickHouseSignalStore) SaveSignals(ctx context.Context, records []domrepo.SignalRecord) error {
	if len(records) == 0 {
		return nil
	}

	values := make([]string, 0, len(records))
	args := make([]interface{}, 0, len(records)*8)
	for _, r := range records {
		if r.Symbol == "" || r.Kind == "" {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			r.DetectedAt,
			r.Symbol,
			r.Kind,
			r.Subtype,
			r.Exchanges,
			r.Magnitude,
			r.Confidence,
			r.Payload,
		)
	}
	if len(values) == 0 {
		return nil
	}

	q := fmt.Sprintf("INSERT INTO %s (detected_at, symbol, kind, subtype, exchanges, magnitude, confidence, payload) VALUES %s",
		s.table, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("save signals: %w", err)
	}
	return nil
}

func (s *ClickHouseSignalStore) QuerySignals(ctx context.Context, symbol, kind string, from, to time.Time, limit int) ([]domrepo.SignalRecord, error) {
	q := fmt.Sprintf(`
		SELECT detected_at, symbol, kind, subtype, exchanges, magnitude, confidence, payload
		FROM %s
		WHERE symbol = ? AND detected_at >= ? AND detected_at <= ?
	`, s.table)
	args := []interface{}{symbol, from, to}
	if kind != "" {
		q += " AND kind = ?"
		args = append(args, kind)
	}
	q += " ORDER BY detected_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []domrepo.SignalRecord
	for rows.Next() {
		var r domrepo.SignalRecord
		if err := rows.Scan(&r.DetectedAt, &r.Symbol, &r.Kind, &r.Subtype, &r.Exchanges, &r.Magnitude, &r.Confidence, &r.Payload); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *ClickHouseSignalStore) Close() error {
	return nil // pool owned by pkg client
}

// KafkaSignalPublisher pushes detected signals to a topic keyed by symbol.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) domrepo.SignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) PublishSignal(ctx context.Context, r domrepo.SignalRecord) error {
	return p.producer.Publish(ctx, p.topic, []byte(r.Symbol), map[string]interface{}{
		"symbol":      r.Symbol,
		"kind":        r.Kind,
		"subtype":     r.Subtype,
		"exchanges":   r.Exchanges,
		"magnitude":   r.Magnitude,
		"confidence":  r.Confidence,
		"payload":     r.Payload,
		"detected_at": r.DetectedAt.UnixMilli(),
	})
}

func (p *KafkaSignalPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
