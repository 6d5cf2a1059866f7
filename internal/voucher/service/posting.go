package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
	auditdomain "github.com/smallbiznis/bookkeeper/internal/audit/domain"
	"github.com/smallbiznis/bookkeeper/internal/observability/logger"
	"github.com/smallbiznis/bookkeeper/internal/voucher/domain"
	"github.com/smallbiznis/bookkeeper/internal/voucher/format"
	"github.com/smallbiznis/bookkeeper/pkg/calendar"
	storage "github.com/smallbiznis/bookkeeper/pkg/db"
	"github.com/smallbiznis/bookkeeper/pkg/money"
	"github.com/smallbiznis/bookkeeper/pkg/telemetry/correlation"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxIdempotencyKeyLen = 255

// draft is a validated voucher waiting for a number.
type draft struct {
	voucherType     domain.Type
	date            time.Time
	narration       string
	referenceType   *string
	referenceID     *string
	reversalOf      *snowflake.ID
	idempotencyKey  *string
	idempotencyHash *string
	lines           []line
}

type line struct {
	ledgerID  snowflake.ID
	direction accountdomain.Side
	amount    int64
}

func (s *Service) PostVoucher(ctx context.Context, req domain.PostVoucherRequest) (domain.Voucher, error) {
	ctx, _ = correlation.EnsureCorrelationID(ctx)

	d, err := validate(req)
	if err != nil {
		s.reject(ctx, req.Type, err)
		return domain.Voucher{}, err
	}

	if d.idempotencyKey != nil {
		existing, err := s.findByKey(ctx, *d.idempotencyKey)
		if err != nil {
			return domain.Voucher{}, storage.WrapStorageErr(err)
		}
		if existing != nil {
			return replay(*existing, d)
		}
	}

	var (
		voucher  domain.Voucher
		replayed bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if d.idempotencyKey != nil {
			existing, err := s.repo.FindByIdempotencyKey(ctx, tx, *d.idempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				replayed = true
				vouchers := []domain.Voucher{*existing}
				if err := s.attachEntries(ctx, tx, vouchers); err != nil {
					return err
				}
				voucher, err = replay(vouchers[0], d)
				return err
			}
		}

		var err error
		voucher, err = s.commit(ctx, tx, d)
		return err
	})
	if err != nil && d.idempotencyKey != nil && storage.IsDuplicateKeyErr(err) {
		// Lost a race with a retry carrying the same key.
		existing, findErr := s.findByKey(ctx, *d.idempotencyKey)
		if findErr == nil && existing != nil {
			return replay(*existing, d)
		}
	}
	if err != nil {
		s.reject(ctx, string(d.voucherType), err)
		return domain.Voucher{}, storage.WrapStorageErr(err)
	}
	if replayed {
		return voucher, nil
	}

	s.posted(ctx, voucher)
	return voucher, nil
}

func (s *Service) ReverseVoucher(ctx context.Context, id string, req domain.ReverseVoucherRequest) (domain.Voucher, error) {
	ctx, _ = correlation.EnsureCorrelationID(ctx)

	voucherID, err := parseID(id)
	if err != nil {
		return domain.Voucher{}, err
	}
	date, err := calendar.ParseOr(req.Date, s.clock.Now())
	if err != nil {
		return domain.Voucher{}, err
	}

	var voucher domain.Voucher
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		original, err := s.repo.FindByID(ctx, tx, voucherID)
		if err != nil {
			return err
		}
		if original == nil {
			return domain.ErrNotFound
		}
		reversal, err := s.repo.FindReversal(ctx, tx, original.ID)
		if err != nil {
			return err
		}
		if reversal != nil {
			return domain.ErrAlreadyReversed
		}
		entries, err := s.repo.ListEntries(ctx, tx, []snowflake.ID{original.ID})
		if err != nil {
			return err
		}

		narration := strings.TrimSpace(req.Narration)
		if narration == "" {
			narration = "Reversal of " + original.VoucherNo
		}
		d := draft{
			voucherType: original.Type,
			date:        date,
			narration:   narration,
			reversalOf:  &original.ID,
			lines:       make([]line, 0, len(entries)),
		}
		for _, e := range entries {
			d.lines = append(d.lines, line{
				ledgerID:  e.LedgerID,
				direction: e.Direction.Opposite(),
				amount:    int64(e.Amount),
			})
		}

		voucher, err = s.commit(ctx, tx, d)
		return err
	})
	if err != nil {
		if storage.IsDuplicateKeyErr(err) {
			return domain.Voucher{}, domain.ErrAlreadyReversed
		}
		return domain.Voucher{}, storage.WrapStorageErr(err)
	}

	s.posted(ctx, voucher)
	return voucher, nil
}

// commit is the only place vouchers are written. It must run inside tx.
func (s *Service) commit(ctx context.Context, tx *gorm.DB, d draft) (domain.Voucher, error) {
	ledgerIDs := make([]snowflake.ID, 0, len(d.lines))
	for _, l := range d.lines {
		ledgerIDs = append(ledgerIDs, l.ledgerID)
	}
	if err := s.accountRepo.LockLedgers(ctx, tx, ledgerIDs, clause.LockingStrengthShare); err != nil {
		return domain.Voucher{}, err
	}
	ledgers, err := s.accountRepo.FindLedgersByIDs(ctx, tx, ledgerIDs)
	if err != nil {
		return domain.Voucher{}, err
	}
	byID := make(map[snowflake.ID]accountdomain.LedgerAccount, len(ledgers))
	for _, l := range ledgers {
		byID[l.ID] = l
	}
	for i, l := range d.lines {
		ledger, ok := byID[l.ledgerID]
		if !ok {
			return domain.Voucher{}, &domain.EntryError{Index: i, Field: "ledger_id", Reason: domain.ReasonLedgerNotFound, Err: domain.ErrInvalidEntry}
		}
		if !ledger.IsActive {
			return domain.Voucher{}, &domain.EntryError{Index: i, Field: "ledger_id", Reason: domain.ReasonLedgerInactive, Err: domain.ErrInvalidEntry}
		}
	}

	now := s.clock.Now()
	seq, err := s.repo.NextSequence(ctx, tx, d.voucherType, now)
	if err != nil {
		return domain.Voucher{}, err
	}
	number, err := format.VoucherNumber(s.books.Get().Template(string(d.voucherType)), d.date, seq)
	if err != nil {
		return domain.Voucher{}, err
	}

	voucher := domain.Voucher{
		ID:              s.genID.Generate(),
		VoucherNo:       number,
		Type:            d.voucherType,
		Sequence:        seq,
		Date:            calendar.NewDate(d.date),
		Narration:       d.narration,
		ReferenceType:   d.referenceType,
		ReferenceID:     d.referenceID,
		ReversalOf:      d.reversalOf,
		IdempotencyKey:  d.idempotencyKey,
		IdempotencyHash: d.idempotencyHash,
		CreatedAt:       now,
		Entries:         make([]domain.Entry, 0, len(d.lines)),
	}
	for i, l := range d.lines {
		if l.direction == accountdomain.SideDebit {
			voucher.TotalAmount += money.Amount(l.amount)
		}
		voucher.Entries = append(voucher.Entries, domain.Entry{
			ID:         s.genID.Generate(),
			VoucherID:  voucher.ID,
			LineNo:     i + 1,
			LedgerID:   l.ledgerID,
			LedgerName: byID[l.ledgerID].Name,
			Direction:  l.direction,
			Amount:     money.Amount(l.amount),
			CreatedAt:  now,
		})
	}

	if err := s.repo.Insert(ctx, tx, &voucher); err != nil {
		return domain.Voucher{}, err
	}
	if err := s.repo.InsertEntries(ctx, tx, voucher.Entries); err != nil {
		return domain.Voucher{}, err
	}

	metadata := map[string]any{
		"voucher_no":   voucher.VoucherNo,
		"voucher_type": string(voucher.Type),
		"date":         voucher.Date.String(),
		"total_amount": voucher.TotalAmount.String(),
	}
	action := "voucher.post"
	if voucher.ReversalOf != nil {
		action = "voucher.reverse"
		metadata["reversal_of"] = voucher.ReversalOf.String()
	}
	if err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
		Action:     action,
		TargetType: auditdomain.TargetVoucher,
		TargetID:   voucher.ID.String(),
		Metadata:   metadata,
	}); err != nil {
		return domain.Voucher{}, err
	}

	return voucher, nil
}

// replay answers a retried post with the voucher it created. A key reused for
// a different request is a conflict. Vouchers stored without a hash match any
// request.
func replay(existing domain.Voucher, d draft) (domain.Voucher, error) {
	if existing.IdempotencyHash != nil && d.idempotencyHash != nil && *existing.IdempotencyHash != *d.idempotencyHash {
		return domain.Voucher{}, domain.ErrIdempotencyKeyReused
	}
	return existing, nil
}

func (s *Service) findByKey(ctx context.Context, key string) (*domain.Voucher, error) {
	existing, err := s.repo.FindByIdempotencyKey(ctx, s.db, key)
	if err != nil || existing == nil {
		return nil, err
	}
	vouchers := []domain.Voucher{*existing}
	if err := s.attachEntries(ctx, s.db, vouchers); err != nil {
		return nil, err
	}
	return &vouchers[0], nil
}

func (s *Service) posted(ctx context.Context, v domain.Voucher) {
	s.metrics.RecordVoucherPosted(ctx, string(v.Type))
	logger.WithContext(ctx, s.log).Info("voucher posted",
		zap.String("voucher_id", v.ID.String()),
		zap.String("voucher_no", v.VoucherNo),
		zap.String("voucher_type", string(v.Type)),
		zap.String("total_amount", v.TotalAmount.String()),
		zap.Int("entries", len(v.Entries)),
	)
}

func (s *Service) reject(ctx context.Context, voucherType string, err error) {
	reason := rejectionReason(err)
	if reason == "" {
		return
	}
	s.metrics.RecordPostingRejected(ctx, strings.ToLower(strings.TrimSpace(voucherType)), reason)
	logger.WithContext(ctx, s.log).Info("voucher rejected",
		zap.String("voucher_type", voucherType),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

// rejectionReason names caller errors; storage failures return "".
func rejectionReason(err error) string {
	for _, known := range []error{
		domain.ErrUnbalancedVoucher,
		domain.ErrInvalidEntry,
		domain.ErrEmptyVoucher,
		domain.ErrInvalidType,
		domain.ErrInvalidDate,
		domain.ErrInvalidID,
		domain.ErrInvalidAmount,
		domain.ErrInvalidIdempotencyKey,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return ""
}

// validate checks everything that can be checked without the store.
func validate(req domain.PostVoucherRequest) (draft, error) {
	voucherType := domain.Type(strings.ToLower(strings.TrimSpace(req.Type)))
	if !voucherType.Valid() {
		return draft{}, domain.ErrInvalidType
	}
	date, err := calendar.Parse(req.Date)
	if err != nil {
		return draft{}, domain.ErrInvalidDate
	}

	d := draft{
		voucherType:   voucherType,
		date:          date,
		narration:     strings.TrimSpace(req.Narration),
		referenceType: optional(req.ReferenceType),
		referenceID:   optional(req.ReferenceID),
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		if len(key) > maxIdempotencyKeyLen {
			return draft{}, domain.ErrInvalidIdempotencyKey
		}
		d.idempotencyKey = &key
	}

	if len(req.Entries) < 2 {
		return draft{}, domain.ErrEmptyVoucher
	}

	var totalDebit, totalCredit int64
	d.lines = make([]line, 0, len(req.Entries))
	for i, in := range req.Entries {
		ledgerID, err := snowflake.ParseString(strings.TrimSpace(in.LedgerID))
		if err != nil || ledgerID == 0 {
			return draft{}, &domain.EntryError{Index: i, Field: "ledger_id", Reason: domain.ReasonInvalidLedgerID, Err: domain.ErrInvalidID}
		}
		debit, err := money.ToMinor(in.Debit)
		if err != nil {
			return draft{}, &domain.EntryError{Index: i, Field: "debit", Reason: domain.ReasonTooPrecise, Err: domain.ErrInvalidAmount}
		}
		credit, err := money.ToMinor(in.Credit)
		if err != nil {
			return draft{}, &domain.EntryError{Index: i, Field: "credit", Reason: domain.ReasonTooPrecise, Err: domain.ErrInvalidAmount}
		}

		switch {
		case debit < 0:
			return draft{}, &domain.EntryError{Index: i, Field: "debit", Reason: domain.ReasonNegativeAmount, Err: domain.ErrInvalidEntry}
		case credit < 0:
			return draft{}, &domain.EntryError{Index: i, Field: "credit", Reason: domain.ReasonNegativeAmount, Err: domain.ErrInvalidEntry}
		case debit != 0 && credit != 0:
			return draft{}, &domain.EntryError{Index: i, Field: "debit", Reason: domain.ReasonBothSides, Err: domain.ErrInvalidEntry}
		case debit == 0 && credit == 0:
			return draft{}, &domain.EntryError{Index: i, Field: "debit", Reason: domain.ReasonNoAmount, Err: domain.ErrInvalidEntry}
		}

		l := line{ledgerID: ledgerID, direction: accountdomain.SideDebit, amount: debit}
		if credit != 0 {
			l.direction, l.amount = accountdomain.SideCredit, credit
		}
		totalDebit += debit
		totalCredit += credit
		d.lines = append(d.lines, l)
	}

	if int64(money.Amount(totalDebit-totalCredit).Abs()) > domain.BalanceTolerance {
		return draft{}, &domain.UnbalancedError{Debit: totalDebit, Credit: totalCredit}
	}
	if d.idempotencyKey != nil {
		hash := d.fingerprint()
		d.idempotencyHash = &hash
	}
	return d, nil
}

// fingerprint identifies the normalized request a client attached an
// idempotency key to.
func (d draft) fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%q|%q|%q", d.voucherType, calendar.Format(d.date), d.narration,
		deref(d.referenceType), deref(d.referenceID))
	for _, l := range d.lines {
		fmt.Fprintf(h, "|%d:%s:%d", l.ledgerID, l.direction, l.amount)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
