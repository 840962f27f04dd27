// Package model defines domain entities shared by the store, services and sync layers.
package model

import (
	"strings"
	"time"
)

// Role is the privilege level of a user.
type Role string

const (
	RoleAdmin     Role = "Admin"
	RoleManager   Role = "Manager"
	RoleRequester Role = "Requester"
)

// Privileged reports whether the role may assign suppliers and manage users.
func (r Role) Privileged() bool { return r == RoleAdmin || r == RoleManager }

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleRequester
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending  OrderStatus = "Pending"
	StatusAssigned OrderStatus = "Assigned"
)

// ReservedUserID cannot be registered by anyone (compared case-insensitively).
const ReservedUserID = "ADMIN"

// Order is a single shipment request. JSON names match the backup file format.
type Order struct {
	ID                string      `json:"id"`
	Requester         string      `json:"requester"` // User.ID
	PickupDate        string      `json:"pickupDate"`
	ProjectCode       string      `json:"projectCode"`
	ProjectName       string      `json:"projectName"`
	DeliveryDate      string      `json:"deliveryDate"`
	PickupWarehouse   string      `json:"pickupWarehouse"`
	DeliveryWarehouse string      `json:"deliveryWarehouse"`
	VehicleType       string      `json:"vehicleType"`
	GoodsType         string      `json:"goodsType"`
	Supplier          string      `json:"supplier,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	Notes             string      `json:"notes,omitempty"`
	Quantity          int         `json:"quantity"`
	Status            OrderStatus `json:"status"`
	IsUrgent          bool        `json:"isUrgent"`
}

// User is an application account. Password holds an encoded hash or a legacy plaintext value.
type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	Password  string     `json:"password,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	Address   string     `json:"address,omitempty"`
}

// SameID compares user ids using the case-insensitive collation.
func SameID(a, b string) bool { return strings.EqualFold(a, b) }

// AppState is the complete persisted snapshot.
type AppState struct {
	Orders    []Order  `json:"orders"`
	Users     []User   `json:"users"`
	Suppliers []string `json:"suppliers"`
}

// Clone returns a deep copy so snapshots never alias live state.
func (s AppState) Clone() AppState {
	out := AppState{
		Orders:    append([]Order(nil), s.Orders...),
		Users:     make([]User, len(s.Users)),
		Suppliers: append([]string(nil), s.Suppliers...),
	}
	for i, u := range s.Users {
		if u.LastLogin != nil {
			t := *u.LastLogin
			u.LastLogin = &t
		}
		out.Users[i] = u
	}
	if out.Orders == nil {
		out.Orders = []Order{}
	}
	if out.Suppliers == nil {
		out.Suppliers = []string{}
	}
	return out
}

// FindUser returns the index of the user with the given id (case-insensitive) or -1.
func (s AppState) FindUser(id string) int {
	for i := range s.Users {
		if SameID(s.Users[i].ID, id) {
			return i
		}
	}
	return -1
}

// FindOrder returns the index of the order with the given id or -1.
func (s AppState) FindOrder(id string) int {
	for i := range s.Orders {
		if s.Orders[i].ID == id {
			return i
		}
	}
	return -1
}

// AddSupplier appends name to the registry unless already present (case-sensitive).
func (s *AppState) AddSupplier(name string) bool {
	if name == "" {
		return false
	}
	for _, v := range s.Suppliers {
		if v == name {
			return false
		}
	}
	s.Suppliers = append(s.Suppliers, name)
	return true
}

// Session is the authenticated-session projection: the user without password.
type Session struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SyncCredentials are the remote document token and id.
type SyncCredentials struct {
	Token      string `json:"token"`
	DocumentID string `json:"documentId"`
}

// Empty reports whether automatic sync is disabled.
func (c SyncCredentials) Empty() bool { return c.Token == "" || c.DocumentID == "" }

// SyncStatus reflects the live state of the last sync operation. Never persisted.
type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncSyncing SyncStatus = "syncing"
	SyncSynced  SyncStatus = "synced"
	SyncError   SyncStatus = "error"
)
