// Package tape publishes executed trades to a Kafka topic so downstream
// consumers can follow the session's fills without touching the feed.
package tape

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/jz1452/market-exchange-simulator/internal/strategy"
)

// TopicTradeFills is the trade tape topic.
const TopicTradeFills = "trades.fills"

// TradeMsg is the JSON schema of one trade-tape record.
type TradeMsg struct {
	EventID      string  `json:"event_id"`
	Symbol       string  `json:"symbol"`
	Side         string  `json:"side"` // "BUY" or "SELL"
	Reason       string  `json:"reason,omitempty"`
	Qty          int64   `json:"qty"`
	Price        float64 `json:"price"`
	PnL          float64 `json:"pnl"`
	Sequence     uint64  `json:"sequence"`
	TsUnixMillis int64   `json:"ts_unix_millis"`
}

// Producer wraps a Kafka producer for the trade tape
type Producer struct {
	client       *kgo.Client
	logger       *zap.Logger
	produceCount int64
	errorCount   int64
}

// NewProducer creates a new trade tape producer
func NewProducer(brokers []string, logger *zap.Logger) (*Producer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.DisableIdempotentWrite(),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	p := &Producer{
		client: client,
		logger: logger,
	}

	logger.Info("trade tape producer initialized",
		zap.Strings("brokers", brokers),
	)

	go p.logStats()

	return p, nil
}

// PublishTrade produces one fill to the trade tape topic, keyed by symbol.
func (p *Producer) PublishTrade(ctx context.Context, fill strategy.Fill) error {
	msg := TradeMsg{
		EventID:      uuid.New().String(),
		Symbol:       fill.Symbol,
		Side:         fill.Side,
		Reason:       string(fill.Reason),
		Qty:          int64(fill.Quantity),
		Price:        fill.Price,
		PnL:          fill.PnL,
		Sequence:     fill.Sequence,
		TsUnixMillis: int64(fill.Timestamp / 1_000_000),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		return fmt.Errorf("failed to marshal trade: %w", err)
	}

	record := &kgo.Record{
		Topic: TopicTradeFills,
		Key:   []byte(fill.Symbol),
		Value: data,
	}

	produceCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result := p.client.ProduceSync(produceCtx, record)
	if result.FirstErr() != nil {
		atomic.AddInt64(&p.errorCount, 1)
		return fmt.Errorf("failed to produce trade: %w", result.FirstErr())
	}

	atomic.AddInt64(&p.produceCount, 1)
	return nil
}

// Close closes the producer
func (p *Producer) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

// logStats logs producer statistics periodically
func (p *Producer) logStats() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		produced := atomic.LoadInt64(&p.produceCount)
		errors := atomic.LoadInt64(&p.errorCount)
		p.logger.Info("trade tape stats",
			zap.Int64("produced", produced),
			zap.Int64("errors", errors),
		)
	}
}
