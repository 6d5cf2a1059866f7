package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bookkeeper/internal/account/domain"
	auditdomain "github.com/smallbiznis/bookkeeper/internal/audit/domain"
	"github.com/smallbiznis/bookkeeper/internal/clock"
	"github.com/smallbiznis/bookkeeper/internal/observability/metrics"
	"github.com/smallbiznis/bookkeeper/pkg/calendar"
	storage "github.com/smallbiznis/bookkeeper/pkg/db"
	"github.com/smallbiznis/bookkeeper/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	GenID    *snowflake.Node
	Repo     domain.Repository
	AuditSvc auditdomain.Service
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	genID    *snowflake.Node
	repo     domain.Repository
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("account.service"),
		clock:    p.Clock,
		genID:    p.GenID,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

func (s *Service) CreateGroup(ctx context.Context, req domain.CreateGroupRequest) (domain.AccountGroup, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.AccountGroup{}, domain.ErrInvalidName
	}

	groupType := domain.GroupType(strings.ToLower(strings.TrimSpace(string(req.Type))))
	var parentID *snowflake.ID
	if strings.TrimSpace(req.ParentID) != "" {
		id, err := parseID(req.ParentID)
		if err != nil {
			return domain.AccountGroup{}, err
		}
		parentID = &id
	}

	var group domain.AccountGroup
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if parentID != nil {
			parent, err := s.repo.FindGroupByID(ctx, tx, *parentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return domain.ErrInvalidGroup
			}
			if groupType != "" && groupType != parent.Type {
				return domain.ErrInvalidGroupType
			}
			groupType = parent.Type
		}
		if !groupType.Valid() {
			return domain.ErrInvalidGroupType
		}

		existing, err := s.repo.FindGroupByName(ctx, tx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrDuplicateGroup
		}

		group = domain.AccountGroup{
			ID:        s.genID.Generate(),
			Name:      name,
			Type:      groupType,
			ParentID:  parentID,
			IsSystem:  req.IsSystem,
			CreatedAt: s.clock.Now(),
		}
		if err := s.repo.InsertGroup(ctx, tx, &group); err != nil {
			if storage.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateGroup
			}
			return err
		}

		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     "group.create",
			TargetType: auditdomain.TargetGroup,
			TargetID:   group.ID.String(),
			Metadata:   map[string]any{"name": group.Name, "type": string(group.Type)},
		})
	})
	if err != nil {
		return domain.AccountGroup{}, storage.WrapStorageErr(err)
	}

	s.log.Info("account group created", zap.String("group_id", group.ID.String()), zap.String("type", string(group.Type)))
	return group, nil
}

func (s *Service) GetGroup(ctx context.Context, id string) (domain.AccountGroup, error) {
	groupID, err := parseID(id)
	if err != nil {
		return domain.AccountGroup{}, err
	}

	group, err := s.repo.FindGroupByID(ctx, s.db, groupID)
	if err != nil {
		return domain.AccountGroup{}, storage.WrapStorageErr(err)
	}
	if group == nil {
		return domain.AccountGroup{}, domain.ErrNotFound
	}
	return *group, nil
}

func (s *Service) ListGroups(ctx context.Context) ([]domain.AccountGroup, error) {
	groups, err := s.repo.ListGroups(ctx, s.db)
	if err != nil {
		return nil, storage.WrapStorageErr(err)
	}
	if groups == nil {
		groups = []domain.AccountGroup{}
	}
	return groups, nil
}

func (s *Service) ChartOfAccounts(ctx context.Context) ([]domain.GroupNode, error) {
	groups, err := s.repo.ListGroups(ctx, s.db)
	if err != nil {
		return nil, storage.WrapStorageErr(err)
	}
	ledgers, err := s.repo.ListLedgers(ctx, s.db, domain.ListLedgerFilter{})
	if err != nil {
		return nil, storage.WrapStorageErr(err)
	}

	known := make(map[snowflake.ID]bool, len(groups))
	for _, g := range groups {
		known[g.ID] = true
	}
	children := map[snowflake.ID][]domain.AccountGroup{}
	roots := []domain.AccountGroup{}
	for _, g := range groups {
		if g.ParentID == nil || !known[*g.ParentID] {
			roots = append(roots, g)
			continue
		}
		children[*g.ParentID] = append(children[*g.ParentID], g)
	}
	byGroup := map[snowflake.ID][]domain.LedgerAccount{}
	for _, l := range ledgers {
		byGroup[l.GroupID] = append(byGroup[l.GroupID], l)
	}

	var build func(g domain.AccountGroup) domain.GroupNode
	build = func(g domain.AccountGroup) domain.GroupNode {
		node := domain.GroupNode{
			AccountGroup: g,
			Ledgers:      byGroup[g.ID],
			Subgroups:    []domain.GroupNode{},
		}
		if node.Ledgers == nil {
			node.Ledgers = []domain.LedgerAccount{}
		}
		for _, child := range children[g.ID] {
			node.Subgroups = append(node.Subgroups, build(child))
		}
		return node
	}

	tree := make([]domain.GroupNode, 0, len(roots))
	for _, g := range roots {
		tree = append(tree, build(g))
	}
	return tree, nil
}

func (s *Service) CreateLedger(ctx context.Context, req domain.CreateLedgerRequest) (domain.LedgerAccount, error) {
	name := strings.TrimSpace(req.Name)
	code := slug.Make(name)
	if name == "" || code == "" {
		return domain.LedgerAccount{}, domain.ErrInvalidName
	}

	groupID, err := parseID(req.GroupID)
	if err != nil {
		return domain.LedgerAccount{}, err
	}

	side := domain.Side(strings.ToLower(strings.TrimSpace(string(req.OpeningBalanceSide))))
	if side != "" && !side.Valid() {
		return domain.LedgerAccount{}, domain.ErrInvalidSide
	}

	amount, err := toMinor(req.OpeningBalance)
	if err != nil {
		return domain.LedgerAccount{}, err
	}

	openingDate, err := calendar.ParseOr(req.OpeningBalanceDate, s.clock.Now())
	if err != nil {
		return domain.LedgerAccount{}, err
	}

	var account domain.LedgerAccount
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := s.repo.FindGroupByID(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if group == nil {
			return domain.ErrInvalidGroup
		}

		existing, err := s.repo.FindLedgerByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrDuplicateLedger
		}

		now := s.clock.Now()
		ledger := domain.Ledger{
			ID:                 s.genID.Generate(),
			Code:               code,
			Name:               name,
			GroupID:            group.ID,
			IsActive:           true,
			OpeningBalance:     money.Amount(onNormalSide(group.Type.NormalSide(), side, amount)),
			OpeningBalanceDate: calendar.NewDate(openingDate),
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := s.repo.InsertLedger(ctx, tx, &ledger); err != nil {
			if storage.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateLedger
			}
			return err
		}

		account = domain.LedgerAccount{Ledger: ledger, GroupName: group.Name, GroupType: group.Type}
		return s.audit(ctx, tx, "ledger.create", ledger, map[string]any{
			"group_id":        group.ID.String(),
			"opening_balance": ledger.OpeningBalance.String(),
		})
	})
	if err != nil {
		return domain.LedgerAccount{}, storage.WrapStorageErr(err)
	}

	s.metrics.RecordLedgerChange(ctx, "create")
	s.log.Info("ledger created",
		zap.String("ledger_id", account.ID.String()),
		zap.String("code", account.Code),
		zap.String("group_type", string(account.GroupType)),
	)
	return account, nil
}

func (s *Service) GetLedger(ctx context.Context, id string) (domain.LedgerAccount, error) {
	ledgerID, err := parseID(id)
	if err != nil {
		return domain.LedgerAccount{}, err
	}

	account, err := s.repo.FindLedgerByID(ctx, s.db, ledgerID)
	if err != nil {
		return domain.LedgerAccount{}, storage.WrapStorageErr(err)
	}
	if account == nil {
		return domain.LedgerAccount{}, domain.ErrNotFound
	}
	return *account, nil
}

func (s *Service) ListLedgers(ctx context.Context, req domain.ListLedgerRequest) ([]domain.LedgerAccount, error) {
	filter := domain.ListLedgerFilter{
		IsActive: req.IsActive,
		Search:   req.Search,
		SortBy:   req.SortBy,
		OrderBy:  req.OrderBy,
	}
	if strings.TrimSpace(req.GroupID) != "" {
		id, err := parseID(req.GroupID)
		if err != nil {
			return nil, err
		}
		filter.GroupID = &id
	}
	if groupType := strings.ToLower(strings.TrimSpace(req.GroupType)); groupType != "" {
		filter.GroupType = domain.GroupType(groupType)
		if !filter.GroupType.Valid() {
			return nil, domain.ErrInvalidGroupType
		}
	}

	items, err := s.repo.ListLedgers(ctx, s.db, filter)
	if err != nil {
		return nil, storage.WrapStorageErr(err)
	}
	if items == nil {
		items = []domain.LedgerAccount{}
	}
	return items, nil
}

func (s *Service) UpdateLedger(ctx context.Context, id string, req domain.UpdateLedgerRequest) (domain.LedgerAccount, error) {
	ledgerID, err := parseID(id)
	if err != nil {
		return domain.LedgerAccount{}, err
	}

	var account domain.LedgerAccount
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.lockLedger(ctx, tx, ledgerID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		updated := *current
		changes := map[string]any{}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			code := slug.Make(name)
			if name == "" || code == "" {
				return domain.ErrInvalidName
			}
			if code != current.Code {
				existing, err := s.repo.FindLedgerByCode(ctx, tx, code)
				if err != nil {
					return err
				}
				if existing != nil && existing.ID != current.ID {
					return domain.ErrDuplicateLedger
				}
			}
			updated.Name = name
			updated.Code = code
			changes["name"] = name
		}

		if req.GroupID != nil {
			groupID, err := parseID(*req.GroupID)
			if err != nil {
				return err
			}
			if groupID != current.GroupID {
				postings, err := s.repo.CountPostings(ctx, tx, current.ID)
				if err != nil {
					return err
				}
				if postings > 0 {
					return domain.ErrLedgerHasPosting
				}
				group, err := s.repo.FindGroupByID(ctx, tx, groupID)
				if err != nil {
					return err
				}
				if group == nil {
					return domain.ErrInvalidGroup
				}
				// Keep the opening balance on the same Dr/Cr side when the normal side flips.
				if group.Type.NormalSide() != current.NormalSide() && req.OpeningBalance == nil {
					updated.OpeningBalance = -updated.OpeningBalance
				}
				updated.GroupID = group.ID
				updated.GroupName = group.Name
				updated.GroupType = group.Type
				changes["group_id"] = group.ID.String()
			}
		}

		if req.OpeningBalance != nil {
			var side domain.Side
			if req.OpeningBalanceSide != nil {
				side = domain.Side(strings.ToLower(strings.TrimSpace(string(*req.OpeningBalanceSide))))
				if side != "" && !side.Valid() {
					return domain.ErrInvalidSide
				}
			}
			amount, err := toMinor(*req.OpeningBalance)
			if err != nil {
				return err
			}
			updated.OpeningBalance = money.Amount(onNormalSide(updated.NormalSide(), side, amount))
			changes["opening_balance"] = updated.OpeningBalance.String()
		}

		if req.OpeningBalanceDate != nil {
			date, err := calendar.Parse(*req.OpeningBalanceDate)
			if err != nil {
				return err
			}
			updated.OpeningBalanceDate = calendar.NewDate(date)
			changes["opening_balance_date"] = updated.OpeningBalanceDate.String()
		}

		if len(changes) == 0 {
			account = *current
			return nil
		}

		updated.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateLedger(ctx, tx, &updated.Ledger); err != nil {
			if storage.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateLedger
			}
			return err
		}
		account = updated
		return s.audit(ctx, tx, "ledger.update", updated.Ledger, changes)
	})
	if err != nil {
		return domain.LedgerAccount{}, storage.WrapStorageErr(err)
	}

	s.metrics.RecordLedgerChange(ctx, "update")
	return account, nil
}

func (s *Service) ActivateLedger(ctx context.Context, id string) (domain.LedgerAccount, error) {
	return s.setActive(ctx, id, true)
}

func (s *Service) DeactivateLedger(ctx context.Context, id string) (domain.LedgerAccount, error) {
	return s.setActive(ctx, id, false)
}

func (s *Service) setActive(ctx context.Context, id string, active bool) (domain.LedgerAccount, error) {
	ledgerID, err := parseID(id)
	if err != nil {
		return domain.LedgerAccount{}, err
	}

	action := "deactivate"
	if active {
		action = "activate"
	}

	var account domain.LedgerAccount
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.lockLedger(ctx, tx, ledgerID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		account = *current
		if current.IsActive == active {
			return nil
		}

		account.IsActive = active
		account.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateLedger(ctx, tx, &account.Ledger); err != nil {
			return err
		}
		return s.audit(ctx, tx, "ledger."+action, account.Ledger, nil)
	})
	if err != nil {
		return domain.LedgerAccount{}, storage.WrapStorageErr(err)
	}

	s.metrics.RecordLedgerChange(ctx, action)
	s.log.Info("ledger "+action+"d", zap.String("ledger_id", account.ID.String()))
	return account, nil
}

func (s *Service) DeleteLedger(ctx context.Context, id string) error {
	ledgerID, err := parseID(id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.lockLedger(ctx, tx, ledgerID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		postings, err := s.repo.CountPostings(ctx, tx, ledgerID)
		if err != nil {
			return err
		}
		if postings > 0 {
			return domain.ErrLedgerHasPosting
		}
		if err := s.repo.DeleteLedger(ctx, tx, ledgerID); err != nil {
			return err
		}
		return s.audit(ctx, tx, "ledger.delete", current.Ledger, map[string]any{"name": current.Name})
	})
	if err != nil {
		return storage.WrapStorageErr(err)
	}

	s.metrics.RecordLedgerChange(ctx, "delete")
	return nil
}

// lockLedger reads a ledger under an UPDATE lock so checks against its
// postings and the write that follows see no concurrent post.
func (s *Service) lockLedger(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.LedgerAccount, error) {
	if err := s.repo.LockLedgers(ctx, tx, []snowflake.ID{id}, clause.LockingStrengthUpdate); err != nil {
		return nil, err
	}
	return s.repo.FindLedgerByID(ctx, tx, id)
}

func (s *Service) audit(ctx context.Context, tx *gorm.DB, action string, ledger domain.Ledger, metadata map[string]any) error {
	return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
		Action:     action,
		TargetType: auditdomain.TargetLedger,
		TargetID:   ledger.ID.String(),
		Metadata:   metadata,
	})
}

// onNormalSide converts an amount entered on side into a balance kept on the
// group's normal side. A blank side means the amount is already signed.
func onNormalSide(normal, side domain.Side, amount int64) int64 {
	if side == "" || side == normal {
		return amount
	}
	return -amount
}

func toMinor(d decimal.Decimal) (int64, error) {
	v, err := money.ToMinor(d)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidAmount, err)
	}
	return v, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
