package payment

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/wallet"
)

type Charge struct {
	OrderID     string `json:"order_id" validate:"required"`
	UserID      string `json:"user_id" validate:"required"`
	ProfileID   string `json:"profile_id" validate:"required"`
	AmountCents int64  `json:"amount_cents" validate:"gt=0"`
}

// Refund names the order whose charge is returned. ProfileID and AmountCents
// are optional; when set they must match the original charge.
type Refund struct {
	OrderID     string `json:"order_id" validate:"required"`
	ProfileID   string `json:"profile_id,omitempty"`
	AmountCents int64  `json:"amount_cents,omitempty" validate:"gte=0"`
}

// ChargeResult is the wire response of a charge or refund.
type ChargeResult struct {
	Payment      Record `json:"payment"`
	BalanceCents int64  `json:"balance_cents"`
}

// Service charges and refunds orders. Every wallet movement lands together
// with its journal record through Book.
type Service struct {
	Wallet wallet.Directory
	Book   Book
	Log    *slog.Logger

	locks [64]sync.Mutex // striped by order id
}

// orderLock serialises charge and refund of one order inside this process.
// Across replicas the unique indexes on the journal decide.
func (s *Service) orderLock(orderID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(orderID))
	mu := &s.locks[h.Sum32()%uint32(len(s.locks))]
	mu.Lock()
	return mu.Unlock
}

func (s *Service) Profile(ctx context.Context, userID string) (wallet.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return wallet.Profile{}, apperr.New(apperr.ErrInvalidRequest, "missing user id")
	}
	return s.Wallet.ProfileByUser(ctx, userID)
}

// Charge debits the wallet and records PAID in one step. A rejected debit is
// journalled as FAILED and its error returned unchanged. An order is charged
// at most once; repeating the call with the same profile and amount returns
// the first PAID record.
func (s *Service) Charge(ctx context.Context, c Charge) (Record, int64, error) {
	if c.OrderID == "" || c.ProfileID == "" || c.AmountCents <= 0 {
		return Record{}, 0, apperr.New(apperr.ErrInvalidRequest, "charge needs order_id, profile_id and a positive amount")
	}
	unlock := s.orderLock(c.OrderID)
	defer unlock()

	if p, ok, err := s.find(ctx, c.OrderID, StatusPaid); err != nil {
		return Record{}, 0, err
	} else if ok {
		return s.replayCharge(ctx, p, c)
	}

	rec := Record{OrderID: c.OrderID, UserID: c.UserID, ProfileID: c.ProfileID, AmountCents: c.AmountCents, Status: StatusPaid}
	out, balance, err := s.Book.Charge(ctx, rec)
	switch {
	case err == nil:
		s.Log.InfoContext(ctx, "charged", "order_id", c.OrderID, "profile_id", c.ProfileID,
			"amount_cents", c.AmountCents, "balance_cents", balance)
		return out, balance, nil
	case errors.Is(err, errRecorded):
		// Another replica charged this order between our read and our write.
		p, ok, ferr := s.find(context.WithoutCancel(ctx), c.OrderID, StatusPaid)
		if ferr != nil || !ok {
			return Record{}, 0, apperr.Wrap(apperr.ErrInternal, errors.Join(err, ferr), "reload payment")
		}
		return s.replayCharge(ctx, p, c)
	}

	if _, ok := apperr.As(err); !ok {
		s.Log.ErrorContext(ctx, "charge not applied", "order_id", c.OrderID, "err", err)
		return Record{}, 0, apperr.Wrap(apperr.ErrInternal, err, "charge")
	}
	rec.Status = StatusFailed
	rec.Reason = apperr.CodeOf(err)
	if _, jerr := s.Book.Append(context.WithoutCancel(ctx), rec); jerr != nil {
		s.Log.ErrorContext(ctx, "journal failed attempt", "order_id", c.OrderID, "err", jerr)
	}
	s.Log.WarnContext(ctx, "charge rejected", "order_id", c.OrderID, "profile_id", c.ProfileID,
		"amount_cents", c.AmountCents, "err", err)
	return Record{}, 0, err
}

// replayCharge answers a repeated charge with the recorded one. A repeat that
// names another profile or amount is a different request for the same order.
func (s *Service) replayCharge(ctx context.Context, p Record, c Charge) (Record, int64, error) {
	if p.ProfileID != c.ProfileID || p.AmountCents != c.AmountCents {
		return Record{}, 0, apperr.New(apperr.ErrInvalidRequest,
			fmt.Sprintf("order %s was charged %d on %s", p.OrderID, p.AmountCents, p.ProfileID))
	}
	s.Log.InfoContext(ctx, "charge already recorded", "order_id", c.OrderID, "payment_id", p.ID)
	var balance int64
	if prof, err := s.Wallet.ProfileByUser(ctx, p.UserID); err == nil {
		balance = prof.BalanceCents
	}
	return p, balance, nil
}

// Refund credits back the PAID amount of an order exactly once. A second call
// returns the existing REFUNDED record.
func (s *Service) Refund(ctx context.Context, r Refund) (Record, int64, error) {
	if r.OrderID == "" {
		return Record{}, 0, apperr.New(apperr.ErrInvalidRequest, "missing order id")
	}
	unlock := s.orderLock(r.OrderID)
	defer unlock()

	recs, err := s.Book.ListByOrder(ctx, r.OrderID)
	if err != nil {
		return Record{}, 0, err
	}
	var paid *Record
	for i := range recs {
		switch recs[i].Status {
		case StatusRefunded:
			return recs[i], 0, nil
		case StatusPaid:
			paid = &recs[i]
		}
	}
	if paid == nil {
		return Record{}, 0, apperr.New(apperr.ErrPaymentNotFound, "no payment for order "+r.OrderID)
	}
	if r.ProfileID != "" && r.ProfileID != paid.ProfileID {
		return Record{}, 0, apperr.New(apperr.ErrInvalidRequest, "profile does not match the charge")
	}
	if r.AmountCents != 0 && r.AmountCents != paid.AmountCents {
		return Record{}, 0, apperr.New(apperr.ErrInvalidRequest,
			fmt.Sprintf("refund amount %d does not match charge %d", r.AmountCents, paid.AmountCents))
	}

	out, balance, err := s.Book.Refund(ctx, Record{
		OrderID:     paid.OrderID,
		UserID:      paid.UserID,
		ProfileID:   paid.ProfileID,
		AmountCents: -paid.AmountCents,
		Status:      StatusRefunded,
	})
	if errors.Is(err, errRecorded) {
		if p, ok, ferr := s.find(context.WithoutCancel(ctx), r.OrderID, StatusRefunded); ferr == nil && ok {
			return p, 0, nil
		}
	}
	if err != nil {
		s.Log.WarnContext(ctx, "refund not applied", "order_id", r.OrderID, "err", err)
		if _, ok := apperr.As(err); ok {
			return Record{}, 0, err
		}
		return Record{}, 0, apperr.Wrap(apperr.ErrInternal, err, "refund")
	}
	s.Log.InfoContext(ctx, "refunded", "order_id", r.OrderID, "profile_id", paid.ProfileID,
		"amount_cents", paid.AmountCents, "balance_cents", balance)
	return out, balance, nil
}

func (s *Service) find(ctx context.Context, orderID string, status Status) (Record, bool, error) {
	recs, err := s.Book.ListByOrder(ctx, orderID)
	if err != nil {
		return Record{}, false, err
	}
	for _, r := range recs {
		if r.Status == status {
			return r, true, nil
		}
	}
	return Record{}, false, nil
}

func (s *Service) History(ctx context.Context, orderID string) ([]Record, error) {
	if orderID == "" {
		return nil, apperr.New(apperr.ErrInvalidRequest, "missing order id")
	}
	return s.Book.ListByOrder(ctx, orderID)
}
