package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
	"github.com/smallbiznis/bookkeeper/internal/balance/domain"
	"github.com/smallbiznis/bookkeeper/internal/clock"
	"github.com/smallbiznis/bookkeeper/pkg/calendar"
	storage "github.com/smallbiznis/bookkeeper/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Repo        domain.Repository
	AccountRepo accountdomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	repo        domain.Repository
	accountRepo accountdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("balance.service"),
		clock:       p.Clock,
		repo:        p.Repo,
		accountRepo: p.AccountRepo,
	}
}

func (s *Service) LedgerBalance(ctx context.Context, req domain.LedgerBalanceRequest) (domain.LedgerBalance, error) {
	ledgerID, err := parseID(req.LedgerID)
	if err != nil {
		return domain.LedgerBalance{}, err
	}
	asOf, err := calendar.ParseOr(req.AsOf, s.clock.Now())
	if err != nil {
		return domain.LedgerBalance{}, domain.ErrInvalidDate
	}

	var result domain.LedgerBalance
	err = s.Snapshot(ctx, func(r domain.Reader) error {
		rd := r.(*reader)
		account, err := rd.account(ctx, ledgerID)
		if err != nil {
			return err
		}
		balance, err := rd.balanceOf(ctx, *account, asOf)
		if err != nil {
			return err
		}

		debit, credit := accountdomain.Columns(account.NormalSide(), balance)
		result = domain.LedgerBalance{
			LedgerID:   account.ID,
			LedgerName: account.Name,
			GroupName:  account.GroupName,
			GroupType:  account.GroupType,
			NormalSide: account.NormalSide(),
			AsOf:       calendar.NewDate(asOf),
			Balance:    amount(balance),
			Debit:      amount(debit),
			Credit:     amount(credit),
		}
		return nil
	})
	if err != nil {
		return domain.LedgerBalance{}, err
	}
	return result, nil
}

func (s *Service) RunningLedger(ctx context.Context, req domain.RunningLedgerRequest) (domain.RunningLedger, error) {
	ledgerID, err := parseID(req.LedgerID)
	if err != nil {
		return domain.RunningLedger{}, err
	}
	from, to, err := s.period(req.From, req.To)
	if err != nil {
		return domain.RunningLedger{}, err
	}

	var result domain.RunningLedger
	err = s.Snapshot(ctx, func(r domain.Reader) error {
		rd := r.(*reader)
		account, err := rd.account(ctx, ledgerID)
		if err != nil {
			return err
		}
		result, err = rd.Running(ctx, *account, from, to)
		return err
	})
	if err != nil {
		return domain.RunningLedger{}, err
	}
	return result, nil
}

// period resolves a from/to pair. to defaults to today and from to the
// first day of to's month.
func (s *Service) period(fromValue, toValue string) (time.Time, time.Time, error) {
	to, err := calendar.ParseOr(toValue, s.clock.Now())
	if err != nil {
		return time.Time{}, time.Time{}, domain.ErrInvalidDate
	}
	from, err := calendar.ParseOr(fromValue, time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return time.Time{}, time.Time{}, domain.ErrInvalidDate
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, domain.ErrInvalidDateRange
	}
	return from, to, nil
}

func (s *Service) Snapshot(ctx context.Context, fn func(domain.Reader) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SET TRANSACTION ISOLATION LEVEL REPEATABLE READ READ ONLY").Error; err != nil {
				return err
			}
		}
		return fn(&reader{tx: tx, repo: s.repo, accountRepo: s.accountRepo})
	})
	return storage.WrapStorageErr(err)
}

func parseID(value string) (snowflake.ID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, domain.ErrInvalidID
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return snowflake.ID(id), nil
}
