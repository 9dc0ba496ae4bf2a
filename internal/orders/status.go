package orders

import (
	"errors"
	"fmt"
	"log"
	"strings"
)

type Status string

const (
	StatusPending   Status = "PENDIENTE"
	StatusConfirmed Status = "CONFIRMADO"
	StatusShipped   Status = "ENVIADO"
	StatusDelivered Status = "ENTREGADO"
	StatusCancelled Status = "CANCELADO"
)

var (
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrIllegalTransition = errors.New("status transition not allowed")
)

// validNext is the intended lifecycle. Cancelling a shipped order is left to
// the operator and is not listed.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:   {StatusDelivered: true},
	StatusDelivered: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(validNext[s]) == 0
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

type Policy string

const (
	// PolicyPermissive accepts any status change and only logs the ones
	// outside validNext.
	PolicyPermissive Policy = "permissive"
	// PolicyStrict rejects status changes outside validNext.
	PolicyStrict Policy = "strict"
)

func ParsePolicy(s string) Policy {
	if Policy(strings.ToLower(strings.TrimSpace(s))) == PolicyStrict {
		return PolicyStrict
	}
	return PolicyPermissive
}

// Lifecycle decides whether an admin status change is accepted.
type Lifecycle struct {
	Policy Policy
	Logf   func(format string, args ...any)
}

func (l Lifecycle) Check(orderID int64, from, to Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	if from == to || CanTransition(from, to) {
		return nil
	}
	if l.Policy == PolicyStrict {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	logf := l.Logf
	if logf == nil {
		logf = log.Printf
	}
	logf("order %d: accepting out-of-lifecycle status change %s -> %s", orderID, from, to)
	return nil
}
