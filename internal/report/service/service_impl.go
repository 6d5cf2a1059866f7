package service

import (
	"context"
	"time"

	balancedomain "github.com/smallbiznis/bookkeeper/internal/balance/domain"
	"github.com/smallbiznis/bookkeeper/internal/clock"
	"github.com/smallbiznis/bookkeeper/internal/config"
	"github.com/smallbiznis/bookkeeper/internal/observability/logger"
	"github.com/smallbiznis/bookkeeper/internal/observability/metrics"
	"github.com/smallbiznis/bookkeeper/internal/report/domain"
	"github.com/smallbiznis/bookkeeper/pkg/calendar"
	"github.com/smallbiznis/bookkeeper/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Books      *config.BooksConfigHolder
	BalanceSvc balancedomain.Service
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	clock      clock.Clock
	books      *config.BooksConfigHolder
	balanceSvc balancedomain.Service
	metrics    *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("report.service"),
		clock:      p.Clock,
		books:      p.Books,
		balanceSvc: p.BalanceSvc,
		metrics:    p.Metrics,
	}
}

func (s *Service) TrialBalance(ctx context.Context, req domain.TrialBalanceRequest) (domain.TrialBalance, error) {
	asOf, err := calendar.ParseOr(req.AsOf, s.clock.Now())
	if err != nil {
		return domain.TrialBalance{}, domain.ErrInvalidDate
	}

	var report domain.TrialBalance
	err = s.balanceSvc.Snapshot(ctx, func(r balancedomain.Reader) error {
		accounts, err := r.Accounts(ctx)
		if err != nil {
			return err
		}
		balances, err := r.Balances(ctx, asOf)
		if err != nil {
			return err
		}
		report = buildTrialBalance(asOf, accounts, balances)
		return nil
	})
	if err != nil {
		return domain.TrialBalance{}, err
	}

	s.record(ctx, domain.ReportTrialBalance, report.Diff, zap.String("as_of", report.AsOf.String()))
	return report, nil
}

func (s *Service) ProfitAndLoss(ctx context.Context, req domain.ProfitAndLossRequest) (domain.ProfitAndLoss, error) {
	from, to, err := s.period(req.From, req.To)
	if err != nil {
		return domain.ProfitAndLoss{}, err
	}

	var report domain.ProfitAndLoss
	err = s.balanceSvc.Snapshot(ctx, func(r balancedomain.Reader) error {
		accounts, err := r.Accounts(ctx)
		if err != nil {
			return err
		}
		movements, err := r.Movements(ctx, from, to)
		if err != nil {
			return err
		}
		report = buildProfitAndLoss(from, to, accounts, movements)
		return nil
	})
	if err != nil {
		return domain.ProfitAndLoss{}, err
	}

	s.record(ctx, domain.ReportProfitAndLoss, report.TotalIncome-report.TotalExpenses,
		zap.String("from", report.From.String()),
		zap.String("to", report.To.String()),
	)
	return report, nil
}

func (s *Service) BalanceSheet(ctx context.Context, req domain.BalanceSheetRequest) (domain.BalanceSheet, error) {
	asOf, err := calendar.ParseOr(req.AsOf, s.clock.Now())
	if err != nil {
		return domain.BalanceSheet{}, domain.ErrInvalidDate
	}
	yearStart := s.fiscalYearStart(asOf)

	var report domain.BalanceSheet
	err = s.balanceSvc.Snapshot(ctx, func(r balancedomain.Reader) error {
		accounts, err := r.Accounts(ctx)
		if err != nil {
			return err
		}
		balances, err := r.Balances(ctx, asOf)
		if err != nil {
			return err
		}
		prior, err := r.Balances(ctx, calendar.DayBefore(yearStart))
		if err != nil {
			return err
		}
		yearMovements := subtract(balances, prior)
		report = buildBalanceSheet(asOf, accounts, balances, yearMovements, prior)
		return nil
	})
	if err != nil {
		return domain.BalanceSheet{}, err
	}

	s.record(ctx, domain.ReportBalanceSheet, report.Diff, zap.String("as_of", report.AsOf.String()))
	return report, nil
}

func (s *Service) LedgerVouchers(ctx context.Context, req domain.LedgerVouchersRequest) (balancedomain.RunningLedger, error) {
	from, to, err := s.period(req.From, req.To)
	if err != nil {
		return balancedomain.RunningLedger{}, err
	}

	result, err := s.balanceSvc.RunningLedger(ctx, balancedomain.RunningLedgerRequest{
		LedgerID: req.LedgerID,
		From:     calendar.Format(from),
		To:       calendar.Format(to),
	})
	if err != nil {
		return balancedomain.RunningLedger{}, err
	}
	s.metrics.RecordReport(ctx, domain.ReportLedgerVouchers, true)
	return result, nil
}

// period resolves a reporting range. to defaults to today and from to the
// start of the fiscal year containing to.
func (s *Service) period(fromValue, toValue string) (time.Time, time.Time, error) {
	to, err := calendar.ParseOr(toValue, s.clock.Now())
	if err != nil {
		return time.Time{}, time.Time{}, domain.ErrInvalidDate
	}
	from, err := calendar.ParseOr(fromValue, s.fiscalYearStart(to))
	if err != nil {
		return time.Time{}, time.Time{}, domain.ErrInvalidDate
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, domain.ErrInvalidDateRange
	}
	return from, to, nil
}

func (s *Service) fiscalYearStart(t time.Time) time.Time {
	month, day := s.books.Get().FiscalYearStartMonth()
	return calendar.FiscalYearStart(t, month, day)
}

// record counts the report and warns when its two sides disagree.
func (s *Service) record(ctx context.Context, report string, diff money.Amount, fields ...zap.Field) {
	s.metrics.RecordReport(ctx, report, diff == 0)
	if diff == 0 {
		return
	}
	fields = append(fields,
		zap.String("report", report),
		zap.String("diff", diff.String()),
	)
	logger.WithContext(ctx, s.log).Warn("report out of balance", fields...)
}
