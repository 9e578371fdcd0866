package order

import (
	"fmt"
	"strings"

	"github.com/example/foodcart/pkg/auth"
	"github.com/example/foodcart/pkg/models"
)

// Transition is a legal status change and the role allowed to make it.
type Transition struct {
	From  models.OrderStatus `json:"from"`
	To    models.OrderStatus `json:"to"`
	Actor auth.Role          `json:"actor"`
}

// transitions is the authoritative lifecycle definition. Forward moves go one
// step at a time; customers may only withdraw an order nobody has started.
var transitions = []Transition{
	{From: models.StatusPending, To: models.StatusPreparing, Actor: auth.RoleStaff},
	{From: models.StatusPreparing, To: models.StatusReady, Actor: auth.RoleStaff},
	{From: models.StatusReady, To: models.StatusCompleted, Actor: auth.RoleStaff},
	{From: models.StatusPending, To: models.StatusCancelled, Actor: auth.RoleStaff},
	{From: models.StatusPreparing, To: models.StatusCancelled, Actor: auth.RoleStaff},
	{From: models.StatusPending, To: models.StatusCancelled, Actor: auth.RoleCustomer},
}

type transitionKey struct {
	from  models.OrderStatus
	to    models.OrderStatus
	actor auth.Role
}

var transitionSet = func() map[transitionKey]bool {
	m := make(map[transitionKey]bool, len(transitions))
	for _, t := range transitions {
		m[transitionKey{t.From, t.To, t.Actor}] = true
	}
	return m
}()

// CanTransition reports whether role may move an order from one status to
// another. The error wraps ErrInvalidTransition.
func CanTransition(from, to models.OrderStatus, role auth.Role) error {
	if transitionSet[transitionKey{from, to, role}] {
		return nil
	}
	if from.IsTerminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, from)
	}
	return fmt.Errorf("%w: %s -> %s is not allowed for %s (allowed: %s)",
		ErrInvalidTransition, from, to, role, describe(NextStatuses(from, role)))
}

// NextStatuses lists the statuses role may move an order to from status.
func NextStatuses(from models.OrderStatus, role auth.Role) []models.OrderStatus {
	var next []models.OrderStatus
	for _, t := range transitions {
		if t.From == from && t.Actor == role {
			next = append(next, t.To)
		}
	}
	return next
}

// NextForward returns the single forward step after status, if any.
func NextForward(from models.OrderStatus) (models.OrderStatus, bool) {
	for _, t := range transitions {
		if t.From == from && t.Actor == auth.RoleStaff && t.To != models.StatusCancelled {
			return t.To, true
		}
	}
	return "", false
}

// Transitions returns a copy of the lifecycle table.
func Transitions() []Transition {
	return append([]Transition(nil), transitions...)
}

func describe(statuses []models.OrderStatus) string {
	if len(statuses) == 0 {
		return "none"
	}
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
