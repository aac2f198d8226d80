package ledger

import (
	"context"
	"time"

	"yieldtree/internal/models"
)

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordOperationDuration(string, time.Duration) {}
func (n *NoopMetricsCollector) RecordEntry(string, string, float64)           {}
func (n *NoopMetricsCollector) RecordTransition(string, string)               {}
func (n *NoopMetricsCollector) RecordError(string, string)                    {}

type noopCache struct{}

func (noopCache) GetWallet(context.Context, uint) (*models.Wallet, error) { return nil, nil }
func (noopCache) CacheWallet(context.Context, *models.Wallet) error      { return nil }
func (noopCache) InvalidateWallet(context.Context, uint) error           { return nil }

