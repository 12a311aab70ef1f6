package echoapi

import (
	"sync"
	"time"

	"github.com/trezcool/masomopay/core/payment"
)

// liveSession is the checkout a student is currently looking at.
type liveSession struct {
	session  *payment.Session
	courseID string
	openedAt time.Time
}

// sessionRegistry keeps at most one session per student: opening a checkout closes the previous one,
// the way leaving a checkout page stops its polling.
type sessionRegistry struct {
	mu       sync.Mutex
	students map[string]*liveSession
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{students: make(map[string]*liveSession)}
}

// open makes s the live session of studentID, cancelling the previous one unless it is s.
func (r *sessionRegistry) open(studentID, courseID string, s *payment.Session) {
	r.mu.Lock()
	prev := r.students[studentID]
	r.students[studentID] = &liveSession{session: s, courseID: courseID, openedAt: time.Now()}
	r.mu.Unlock()

	if prev != nil && prev.session != s {
		prev.session.Cancel()
	}
}

// current returns the live session of studentID, whatever code it polls.
func (r *sessionRegistry) current(studentID string) (*liveSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	live, ok := r.students[studentID]
	return live, ok
}

// get returns the live session of studentID if it polls code.
func (r *sessionRegistry) get(studentID string, code payment.TransactionCode) (*liveSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	live, ok := r.students[studentID]
	if !ok || live.session.Code() != code {
		return nil, false
	}
	return live, true
}

// close cancels and forgets the live session of studentID if it polls code.
func (r *sessionRegistry) close(studentID string, code payment.TransactionCode) bool {
	r.mu.Lock()
	live, ok := r.students[studentID]
	if ok && live.session.Code() == code {
		delete(r.students, studentID)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		live.session.Cancel()
	}
	return ok
}

// closeAll cancels every live session.
func (r *sessionRegistry) closeAll() {
	r.mu.Lock()
	students := r.students
	r.students = make(map[string]*liveSession)
	r.mu.Unlock()

	for _, live := range students {
		live.session.Cancel()
	}
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.students)
}
