package flow

import (
	"sync"

	"patientflow/internal/verification/models"
	id "patientflow/pkg/domain"
	dErrors "patientflow/pkg/domain-errors"
)

// Snapshot is an immutable view of the machine at one point in time.
type Snapshot struct {
	SessionID        id.SessionID            `json:"sessionId"`
	Step             models.Step             `json:"step"`
	Attempts         int                     `json:"attempts"`
	MaxAttempts      int                     `json:"maxAttempts"`
	RemainingSeconds int                     `json:"remainingSeconds"`
	Status           string                  `json:"status"`
	LastError        dErrors.Code            `json:"lastError,omitempty"`
	CameraLive       bool                    `json:"cameraLive"`
	Identity         *models.PatientIdentity `json:"identity,omitempty"`
	Method           models.Method           `json:"method,omitempty"`
	TokenIssued      bool                    `json:"tokenIssued"`
	Closed           bool                    `json:"closed"`
	Version          uint64                  `json:"version"`
}

// observers fans snapshots out to subscribers. Each subscriber holds only
// the latest snapshot; a slow reader misses intermediate ones.
type observers struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Snapshot
}

func (o *observers) add(initial Snapshot) (<-chan Snapshot, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.subs == nil {
		o.subs = make(map[int]chan Snapshot)
	}
	ch := make(chan Snapshot, 1)
	ch <- initial
	key := o.next
	o.next++
	o.subs[key] = ch
	return ch, func() { o.remove(key) }
}

func (o *observers) remove(key int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ch, ok := o.subs[key]; ok {
		delete(o.subs, key)
		close(ch)
	}
}

func (o *observers) publish(s Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, ch := range o.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func (o *observers) closeAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for key, ch := range o.subs {
		delete(o.subs, key)
		close(ch)
	}
}
