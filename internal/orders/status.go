package orders

import (
	"math"
	"time"
)

type Status string

const (
	StatusPlaced    Status = "placed"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPlaced:    {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusPreparing: true, StatusCancelled: true},
	StatusPreparing: {StatusReady: true, StatusCancelled: true},
	StatusReady:     {StatusCompleted: true},
	StatusCompleted: {},
	StatusCancelled: {},
}

func ValidStatus(s Status) bool {
	_, ok := validNext[s]
	return ok
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func Terminal(s Status) bool {
	return len(validNext[s]) == 0
}

// ActualPrepMinutes diturunkan dari log, bukan field yang di-update ad hoc:
// selisih waktu completion dengan entry history pertama, dibulatkan ke menit.
func actualPrepMinutes(history []StatusEntry, completedAt time.Time) int {
	if len(history) == 0 {
		return 0
	}
	return int(math.Round(completedAt.Sub(history[0].At).Minutes()))
}

// ApplyTransition memvalidasi lalu menerapkan transisi status:
// append history, set completed_at/cancelled_at, hitung actual prep time.
// Pelepasan stok saat cancel adalah urusan store/orchestrator, bukan di sini.
func (o *Order) ApplyTransition(next Status, actorID, note string, now time.Time) error {
	if !CanTransition(o.Status, next) {
		return &InvalidTransitionError{From: o.Status, To: next}
	}
	o.Status = next
	o.History = append(o.History, StatusEntry{Status: next, At: now, ActorID: actorID, Note: note})

	switch next {
	case StatusCompleted:
		t := now
		o.CompletedAt = &t
		o.ActualPrepMinutes = actualPrepMinutes(o.History, now)
	case StatusCancelled:
		t := now
		o.CancelledAt = &t
	}
	o.UpdatedAt = now
	return nil
}
