package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	topProductsLimit  = 5
	recentOrdersLimit = 5
)

type Service interface {
	Summary(ctx context.Context) (*Summary, error)
	Sales(ctx context.Context, period Period) (*Chart, error)
	TopProducts(ctx context.Context) ([]TopProduct, error)
	RecentOrders(ctx context.Context) ([]RecentOrder, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

// NewServiceAt pins the clock, for tests.
func NewServiceAt(repo Repository, now func() time.Time) Service {
	return &service{repo: repo, now: now}
}

func (s *service) today() time.Time {
	n := s.now().UTC()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *service) Summary(ctx context.Context) (*Summary, error) {
	return s.repo.Summary(ctx, s.today())
}

// Sales returns a chart with one entry per bucket of the period, including
// buckets without sales: the last 7 or 30 days, or the last 12 months.
func (s *service) Sales(ctx context.Context, period Period) (*Chart, error) {
	today := s.today()

	var (
		start  time.Time
		bucket string
		step   func(time.Time) time.Time
		label  string
	)
	switch period {
	case PeriodWeek:
		start, bucket, label = today.AddDate(0, 0, -6), "day", "02 Jan"
		step = func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
	case PeriodYear:
		firstOfMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		start, bucket, label = firstOfMonth.AddDate(0, -11, 0), "month", "Jan 2006"
		step = func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
	default:
		start, bucket, label = today.AddDate(0, 0, -29), "day", "02 Jan"
		step = func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
	}

	points, err := s.repo.Sales(ctx, start, bucket)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]decimal.Decimal, len(points))
	for _, p := range points {
		totals[p.Bucket] = p.Total
	}

	chart := &Chart{Labels: []string{}, Data: []decimal.Decimal{}}
	for t := start; !t.After(today); t = step(t) {
		chart.Labels = append(chart.Labels, t.Format(label))
		total, ok := totals[t.Format("2006-01-02")]
		if !ok {
			total = decimal.Zero
		}
		chart.Data = append(chart.Data, total)
	}

	return chart, nil
}

func (s *service) TopProducts(ctx context.Context) ([]TopProduct, error) {
	return s.repo.TopProducts(ctx, topProductsLimit)
}

func (s *service) RecentOrders(ctx context.Context) ([]RecentOrder, error) {
	return s.repo.RecentOrders(ctx, recentOrdersLimit)
}
