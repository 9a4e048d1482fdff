package orders

import (
	"errors"
	"fmt"

	"foodcart/models"
)

var (
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrIllegalTransition = errors.New("illegal status transition")
)

// Track is the linear delivery workflow shown by progress trackers.
// Cancelled sits outside it.
var Track = []models.OrderStatus{
	models.StatusPending,
	models.StatusPreparing,
	models.StatusPacked,
	models.StatusOutForDelivery,
	models.StatusDelivered,
}

// Statuses lists every status an order can be set to.
var Statuses = append(append([]models.OrderStatus(nil), Track...), models.StatusCancelled)

// StepIndex returns the position of s on Track, or -1 if it is not on it.
func StepIndex(s models.OrderStatus) int {
	for i, step := range Track {
		if step == s {
			return i
		}
	}
	return -1
}

// ParseStatus returns the status named s.
func ParseStatus(s string) (models.OrderStatus, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Terminal reports whether no further progress is expected from s.
func Terminal(s models.OrderStatus) bool {
	return s == models.StatusDelivered || s == models.StatusCancelled
}

// Policy decides which status changes are accepted.
type Policy string

const (
	// PolicyOpen accepts any status after any other.
	PolicyOpen Policy = "open"
	// PolicyStrict only moves forward along Track (skipping is allowed) and
	// cancels from a non-terminal status.
	PolicyStrict Policy = "strict"
)

// ParsePolicy maps a config value to a Policy. Empty means PolicyOpen.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyOpen:
		return PolicyOpen, nil
	case PolicyStrict:
		return PolicyStrict, nil
	}
	return "", fmt.Errorf("unknown transition policy %q", s)
}

// Check returns nil if moving an order from `from` to `to` is allowed.
func (p Policy) Check(from, to models.OrderStatus) error {
	if _, err := ParseStatus(string(to)); err != nil {
		return err
	}
	if p != PolicyStrict || from == to {
		return nil
	}
	if Terminal(from) {
		return fmt.Errorf("%w: %s is final", ErrIllegalTransition, from)
	}
	if to == models.StatusCancelled {
		return nil
	}
	if StepIndex(to) < StepIndex(from) {
		return fmt.Errorf("%w: cannot go back from %s to %s", ErrIllegalTransition, from, to)
	}
	return nil
}

// Step is one stage of a progress tracker.
type Step struct {
	Status  models.OrderStatus `json:"status"`
	Done    bool               `json:"done"`
	Current bool               `json:"current"`
}

// Progress is the tracker view of an order.
type Progress struct {
	OrderID               string             `json:"orderId"`
	Status                models.OrderStatus `json:"status"`
	Step                  int                `json:"step"`
	Steps                 []Step             `json:"steps"`
	Cancelled             bool               `json:"cancelled"`
	EstimatedDeliveryTime *string            `json:"estimatedDeliveryTime,omitempty"`
}

// TrackOrder interprets o's status against Track.
func TrackOrder(o models.Order) Progress {
	idx := StepIndex(o.Status)
	p := Progress{
		OrderID:               o.ID,
		Status:                o.Status,
		Step:                  idx,
		Cancelled:             o.Status == models.StatusCancelled,
		EstimatedDeliveryTime: o.EstimatedDeliveryTime,
		Steps:                 make([]Step, len(Track)),
	}
	for i, s := range Track {
		p.Steps[i] = Step{
			Status:  s,
			Done:    idx >= 0 && i <= idx,
			Current: i == idx,
		}
	}
	return p
}
