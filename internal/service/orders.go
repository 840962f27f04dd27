package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/logistics-keeper/internal/errs"
	"github.com/and161185/logistics-keeper/internal/model"
	"github.com/and161185/logistics-keeper/internal/state"
)

// OrderDraft is the user input for a new order.
type OrderDraft struct {
	Requester         string // privileged actors may order on behalf of another user
	PickupDate        string
	ProjectCode       string
	ProjectName       string
	DeliveryDate      string
	PickupWarehouse   string
	DeliveryWarehouse string
	VehicleType       string
	GoodsType         string
	Supplier          string
	Notes             string
	Quantity          int
	IsUrgent          bool
}

// Filter narrows List. Zero fields do not filter.
type Filter struct {
	Requester string // substring of the requester's name, case-insensitive
	Supplier  string // exact supplier
	From, To  string // YYYY-MM-DD, inclusive, compared in UTC
	Search    string // case-insensitive substring over the searchable fields
}

// OrderService defines order mutations and queries.
type OrderService interface {
	Create(ctx context.Context, actor model.User, d OrderDraft) (model.Order, error)
	AssignSupplier(ctx context.Context, actor model.User, id, supplier string) (model.Order, error)
	Delete(ctx context.Context, actor model.User, id string) error
	List(actor model.User, f Filter) ([]model.Order, error)
}

type OrderServiceImpl struct {
	app *state.App
}

// NewOrderService constructs OrderService.
func NewOrderService(app *state.App) *OrderServiceImpl {
	return &OrderServiceImpl{app: app}
}

// Create prepends a new order. It is Assigned only when a privileged actor names a
// supplier; a new supplier name joins the registry.
func (s *OrderServiceImpl) Create(ctx context.Context, actor model.User, d OrderDraft) (model.Order, error) {
	if d.Quantity < 1 {
		return model.Order{}, fmt.Errorf("%w: quantity must be at least 1", errs.ErrValidation)
	}
	requester := actor.ID
	if d.Requester != "" && actor.Role.Privileged() {
		requester = d.Requester
	}
	supplier := strings.TrimSpace(d.Supplier)

	var out model.Order
	err := s.app.Update(ctx, func(st *model.AppState) error {
		ri := st.FindUser(requester)
		if ri < 0 {
			return fmt.Errorf("%w: requester %q does not exist", errs.ErrValidation, requester)
		}
		now := s.app.Now().UTC()
		status := model.StatusPending
		if actor.Role.Privileged() && supplier != "" {
			status = model.StatusAssigned
		}
		out = model.Order{
			ID:                nextOrderID(st, now),
			Requester:         st.Users[ri].ID,
			PickupDate:        d.PickupDate,
			ProjectCode:       d.ProjectCode,
			ProjectName:       d.ProjectName,
			DeliveryDate:      d.DeliveryDate,
			PickupWarehouse:   d.PickupWarehouse,
			DeliveryWarehouse: d.DeliveryWarehouse,
			VehicleType:       d.VehicleType,
			GoodsType:         d.GoodsType,
			Supplier:          supplier,
			CreatedAt:         now,
			Notes:             d.Notes,
			Quantity:          d.Quantity,
			Status:            status,
			IsUrgent:          d.IsUrgent,
		}
		st.Orders = append([]model.Order{out}, st.Orders...)
		st.AddSupplier(supplier)
		return nil
	})
	return out, err
}

// nextOrderID returns ORD-<unix millis>, bumped past any id already taken.
func nextOrderID(st *model.AppState, now time.Time) string {
	ms := now.UnixMilli()
	for {
		id := "ORD-" + strconv.FormatInt(ms, 10)
		if st.FindOrder(id) < 0 {
			return id
		}
		ms++
	}
}

// AssignSupplier sets the supplier and marks the order Assigned.
func (s *OrderServiceImpl) AssignSupplier(ctx context.Context, actor model.User, id, supplier string) (model.Order, error) {
	if !actor.Role.Privileged() {
		return model.Order{}, errs.ErrInsufficientRole
	}
	supplier = strings.TrimSpace(supplier)
	if supplier == "" {
		return model.Order{}, fmt.Errorf("%w: supplier is required", errs.ErrValidation)
	}
	var out model.Order
	err := s.app.Update(ctx, func(st *model.AppState) error {
		i := st.FindOrder(id)
		if i < 0 {
			return errs.ErrNotFound
		}
		st.Orders[i].Supplier = supplier
		st.Orders[i].Status = model.StatusAssigned
		st.AddSupplier(supplier)
		out = st.Orders[i]
		return nil
	})
	return out, err
}

// Delete removes an order. Requesters may delete only their own orders.
func (s *OrderServiceImpl) Delete(ctx context.Context, actor model.User, id string) error {
	return s.app.Update(ctx, func(st *model.AppState) error {
		i := st.FindOrder(id)
		if i < 0 {
			return errs.ErrNotFound
		}
		if !actor.Role.Privileged() && !model.SameID(st.Orders[i].Requester, actor.ID) {
			return errs.ErrInsufficientRole
		}
		st.Orders = append(st.Orders[:i], st.Orders[i+1:]...)
		return nil
	})
}

// List returns the orders visible to actor that match f, newest first as stored.
func (s *OrderServiceImpl) List(actor model.User, f Filter) ([]model.Order, error) {
	from, to, err := dateRange(f.From, f.To)
	if err != nil {
		return nil, err
	}
	snap := s.app.Snapshot()
	names := make(map[string]string, len(snap.Users))
	for _, u := range snap.Users {
		names[u.ID] = u.Name
	}
	reqTerm := strings.ToLower(f.Requester)
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := []model.Order{}
	for _, o := range snap.Orders {
		if actor.Role == model.RoleRequester && !model.SameID(o.Requester, actor.ID) {
			continue
		}
		name := names[o.Requester]
		if reqTerm != "" && !strings.Contains(strings.ToLower(name), reqTerm) {
			continue
		}
		if f.Supplier != "" && o.Supplier != f.Supplier {
			continue
		}
		if !from.IsZero() && o.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && o.CreatedAt.After(to) {
			continue
		}
		if search != "" && !matches(o, name, search) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func dateRange(from, to string) (time.Time, time.Time, error) {
	var a, b time.Time
	var err error
	if from != "" {
		if a, err = time.Parse(time.DateOnly, from); err != nil {
			return a, b, fmt.Errorf("%w: from date: %v", errs.ErrValidation, err)
		}
	}
	if to != "" {
		if b, err = time.Parse(time.DateOnly, to); err != nil {
			return a, b, fmt.Errorf("%w: to date: %v", errs.ErrValidation, err)
		}
		b = b.Add(24*time.Hour - time.Millisecond)
	}
	return a, b, nil
}

func matches(o model.Order, requesterName, term string) bool {
	fields := []string{
		requesterName,
		o.ProjectCode,
		o.ProjectName,
		o.PickupWarehouse,
		o.DeliveryWarehouse,
		o.VehicleType,
		o.GoodsType,
		o.Supplier,
		o.Notes,
		strconv.Itoa(o.Quantity),
		string(o.Status),
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}
