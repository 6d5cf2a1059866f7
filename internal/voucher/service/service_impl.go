package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
	auditdomain "github.com/smallbiznis/bookkeeper/internal/audit/domain"
	"github.com/smallbiznis/bookkeeper/internal/clock"
	"github.com/smallbiznis/bookkeeper/internal/config"
	"github.com/smallbiznis/bookkeeper/internal/observability/metrics"
	"github.com/smallbiznis/bookkeeper/internal/voucher/domain"
	"github.com/smallbiznis/bookkeeper/pkg/calendar"
	storage "github.com/smallbiznis/bookkeeper/pkg/db"
	"github.com/smallbiznis/bookkeeper/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	GenID       *snowflake.Node
	Books       *config.BooksConfigHolder
	Repo        domain.Repository
	AccountRepo accountdomain.Repository
	AuditSvc    auditdomain.Service
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	genID       *snowflake.Node
	books       *config.BooksConfigHolder
	repo        domain.Repository
	accountRepo accountdomain.Repository
	auditSvc    auditdomain.Service
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("voucher.service"),
		clock:       p.Clock,
		genID:       p.GenID,
		books:       p.Books,
		repo:        p.Repo,
		accountRepo: p.AccountRepo,
		auditSvc:    p.AuditSvc,
		metrics:     p.Metrics,
	}
}

func (s *Service) GetVoucher(ctx context.Context, id string) (domain.Voucher, error) {
	voucherID, err := parseID(id)
	if err != nil {
		return domain.Voucher{}, err
	}

	voucher, err := s.repo.FindByID(ctx, s.db, voucherID)
	if err != nil {
		return domain.Voucher{}, storage.WrapStorageErr(err)
	}
	if voucher == nil {
		return domain.Voucher{}, domain.ErrNotFound
	}

	vouchers := []domain.Voucher{*voucher}
	if err := s.attachEntries(ctx, s.db, vouchers); err != nil {
		return domain.Voucher{}, storage.WrapStorageErr(err)
	}
	return vouchers[0], nil
}

func (s *Service) ListVouchers(ctx context.Context, req domain.ListVoucherRequest) (domain.ListVoucherResponse, error) {
	filter := domain.ListFilter{Limit: req.Limit()}

	if strings.TrimSpace(req.From) != "" {
		from, err := calendar.Parse(req.From)
		if err != nil {
			return domain.ListVoucherResponse{}, err
		}
		filter.From = &from
	}
	if strings.TrimSpace(req.To) != "" {
		to, err := calendar.Parse(req.To)
		if err != nil {
			return domain.ListVoucherResponse{}, err
		}
		filter.To = &to
	}
	if voucherType := strings.TrimSpace(req.Type); voucherType != "" {
		filter.Type = domain.Type(strings.ToLower(voucherType))
		if !filter.Type.Valid() {
			return domain.ListVoucherResponse{}, domain.ErrInvalidType
		}
	}
	if strings.TrimSpace(req.LedgerID) != "" {
		ledgerID, err := parseID(req.LedgerID)
		if err != nil {
			return domain.ListVoucherResponse{}, err
		}
		filter.LedgerID = &ledgerID
	}
	if strings.TrimSpace(req.PageToken) != "" {
		cursor, err := decodeCursor(req.PageToken)
		if err != nil {
			return domain.ListVoucherResponse{}, err
		}
		filter.Cursor = cursor
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListVoucherResponse{}, storage.WrapStorageErr(err)
	}

	vouchers, pageInfo, err := pagination.Trim(items, filter.Limit, func(v domain.Voucher) pagination.Cursor {
		return pagination.Cursor{
			ID:        v.ID.String(),
			Date:      v.Date.String(),
			CreatedAt: v.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	})
	if err != nil {
		return domain.ListVoucherResponse{}, err
	}
	if vouchers == nil {
		vouchers = []domain.Voucher{}
	}
	if err := s.attachEntries(ctx, s.db, vouchers); err != nil {
		return domain.ListVoucherResponse{}, storage.WrapStorageErr(err)
	}

	return domain.ListVoucherResponse{Vouchers: vouchers, PageInfo: pageInfo}, nil
}

func (s *Service) attachEntries(ctx context.Context, db *gorm.DB, vouchers []domain.Voucher) error {
	if len(vouchers) == 0 {
		return nil
	}
	ids := make([]snowflake.ID, 0, len(vouchers))
	for _, v := range vouchers {
		ids = append(ids, v.ID)
	}
	entries, err := s.repo.ListEntries(ctx, db, ids)
	if err != nil {
		return err
	}
	byVoucher := make(map[snowflake.ID][]domain.Entry, len(vouchers))
	for _, e := range entries {
		byVoucher[e.VoucherID] = append(byVoucher[e.VoucherID], e)
	}
	for i := range vouchers {
		vouchers[i].Entries = byVoucher[vouchers[i].ID]
		if vouchers[i].Entries == nil {
			vouchers[i].Entries = []domain.Entry{}
		}
	}
	return nil
}

func decodeCursor(token string) (*domain.Cursor, error) {
	decoded, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	date, err := calendar.Parse(decoded.Date)
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidPageToken
	}
	return &domain.Cursor{Date: date, CreatedAt: createdAt, ID: id}, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
