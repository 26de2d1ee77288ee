// Package repository implements the metrics data feed on gorm.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v4"
	"github.com/smallbiznis/pulse/internal/metricsrepo/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config bounds repository calls.
type Config struct {
	CallTimeout time.Duration
	RetryMax    int
}

func (c Config) withDefaults() Config {
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 3
	}
	return c
}

type Repository struct {
	db  *gorm.DB
	log *zap.Logger
	cfg Config
}

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Config Config `optional:"true"`
}

func New(p Params) domain.Repository {
	return &Repository{
		db:  p.DB,
		log: p.Log.Named("metricsrepo"),
		cfg: p.Config.withDefaults(),
	}
}

func (r *Repository) ActiveSubscriptions(ctx context.Context, asOf time.Time) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := r.query(ctx, "active_subscriptions", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Raw(
			`SELECT business_id, plan_id, created_at, period_start, period_end
			 FROM subscriptions
			 WHERE period_start <= ? AND period_end > ?
			 ORDER BY business_id, created_at`,
			asOf,
			asOf,
		).Scan(&subs).Error
	})
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *Repository) BusinessSubscriptions(ctx context.Context, businessID snowflake.ID) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := r.query(ctx, "business_subscriptions", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Raw(
			`SELECT business_id, plan_id, created_at, period_start, period_end
			 FROM subscriptions
			 WHERE business_id = ?
			 ORDER BY created_at`,
			businessID,
		).Scan(&subs).Error
	})
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, domain.ErrEntityNotFound
	}
	return subs, nil
}

func (r *Repository) PaymentEvents(ctx context.Context, businessID snowflake.ID, w domain.Window) ([]domain.PaymentEvent, error) {
	var events []domain.PaymentEvent
	err := r.query(ctx, "payment_events", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Raw(
			`SELECT business_id, amount, status, processed_at
			 FROM payment_events
			 WHERE business_id = ? AND processed_at >= ? AND processed_at < ?
			 ORDER BY processed_at`,
			businessID,
			w.Start,
			w.End,
		).Scan(&events).Error
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *Repository) UsageEvents(ctx context.Context, businessID snowflake.ID, w domain.Window) ([]domain.UsageEvent, error) {
	var events []domain.UsageEvent
	err := r.query(ctx, "usage_events", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Raw(
			`SELECT business_id, feature, outcome, occurred_at
			 FROM usage_events
			 WHERE business_id = ? AND occurred_at >= ? AND occurred_at < ?
			 ORDER BY occurred_at`,
			businessID,
			w.Start,
			w.End,
		).Scan(&events).Error
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *Repository) SubscriptionStarts(ctx context.Context) ([]domain.SubscriptionStart, error) {
	var starts []domain.SubscriptionStart
	err := r.query(ctx, "subscription_starts", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Raw(
			`SELECT business_id, MIN(created_at) AS first_at
			 FROM subscriptions
			 GROUP BY business_id
			 ORDER BY first_at`,
		).Scan(&starts).Error
	})
	if err != nil {
		return nil, err
	}
	return starts, nil
}

func (r *Repository) RevenueTotals(ctx context.Context) ([]domain.RevenueTotal, error) {
	var totals []domain.RevenueTotal
	err := r.query(ctx, "revenue_totals", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Raw(
			`SELECT business_id, COALESCE(SUM(amount), 0) AS total
			 FROM payment_events
			 WHERE status = ?
			 GROUP BY business_id`,
			domain.PaymentStatusSucceeded,
		).Scan(&totals).Error
	})
	if err != nil {
		return nil, err
	}
	return totals, nil
}

// query runs fn with a per-call timeout and bounded exponential backoff.
// Context cancellation stops the retry loop immediately.
func (r *Repository) query(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	attempt := func() error {
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
		defer cancel()
		return fn(callCtx)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(r.cfg.RetryMax)),
		ctx,
	)

	err := backoff.Retry(func() error {
		if err := attempt(); err != nil {
			if errors.Is(err, context.Canceled) {
				return backoff.Permanent(err)
			}
			r.log.Warn("repository call failed",
				zap.String("query", name),
				zap.Error(err),
			)
			return err
		}
		return nil
	}, policy)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %s: %v", domain.ErrRepositoryUnavailable, name, err)
	}
	return nil
}
