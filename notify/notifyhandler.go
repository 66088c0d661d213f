// Package notify adapts the teacher's notify.Handler to this core's
// domain: non-blocking notice channels for completed/failed payments and
// incoming locked transfers, consumed by whatever upper layer embeds the
// core (CLI, RPC, persistence — all out of scope per spec.md §1).
package notify

import (
	"fmt"

	"github.com/smartraiden/mcore/mediatedtransfer"
	"github.com/smartraiden/mcore/primitives"
)

// Level is the severity of a Notice.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// Notice is one human-facing notification.
type Notice struct {
	Level Level
	Info  interface{}
}

func newNotice(level Level, info interface{}) *Notice {
	return &Notice{Level: level, Info: info}
}

// Handler fans out payment lifecycle events to non-blocking channels; a
// slow or absent consumer never stalls the dispatcher (teacher:
// notify.Handler — sentTransferChan/receivedTransferChan/noticeChan, never
// closed, never block on send).
type Handler struct {
	//completedChan payment-completed notify, should never close
	completedChan chan *mediatedtransfer.EventTransferCompleted
	//failedChan payment-failed notify, should never close
	failedChan chan *mediatedtransfer.EventTransferFailed
	//noticeChan should never close
	noticeChan chan *Notice
}

// NewHandler builds a Handler with unbuffered, never-closed channels.
func NewHandler() *Handler {
	return &Handler{
		completedChan: make(chan *mediatedtransfer.EventTransferCompleted),
		failedChan:    make(chan *mediatedtransfer.EventTransferFailed),
		noticeChan:    make(chan *Notice),
	}
}

// GetNoticeChan returns a read-only view, keeping the channel private.
func (h *Handler) GetNoticeChan() <-chan *Notice {
	return h.noticeChan
}

// GetCompletedChan returns a read-only view of completed payment notices.
func (h *Handler) GetCompletedChan() <-chan *mediatedtransfer.EventTransferCompleted {
	return h.completedChan
}

// GetFailedChan returns a read-only view of failed payment notices.
func (h *Handler) GetFailedChan() <-chan *mediatedtransfer.EventTransferFailed {
	return h.failedChan
}

// Notify pushes a notice to the upper layer without blocking the dispatcher.
func (h *Handler) Notify(level Level, info interface{}) {
	if info == nil || info == "" {
		return
	}
	select {
	case h.noticeChan <- newNotice(level, info):
	default:
		// never block
	}
}

// NotifyReceiveLockedTransfer reports an inbound locked transfer, the Go
// analogue of the teacher's NotifyReceiveMediatedTransfer.
func (h *Handler) NotifyReceiveLockedTransfer(token primitives.Address, amount *primitives.TokenAmount, secretHash primitives.SecretHash) {
	info := fmt.Sprintf("received locked transfer token=%s amount=%s secrethash=%s",
		token.Hex(), amount.String(), secretHash.Hex())
	select {
	case h.noticeChan <- newNotice(LevelInfo, info):
	default:
		// never block
	}
}

// NotifyCompleted reports a completed payment.
func (h *Handler) NotifyCompleted(e *mediatedtransfer.EventTransferCompleted) {
	if e == nil {
		return
	}
	select {
	case h.completedChan <- e:
	default:
		// never block
	}
}

// NotifyFailed reports a failed payment.
func (h *Handler) NotifyFailed(e *mediatedtransfer.EventTransferFailed) {
	if e == nil {
		return
	}
	select {
	case h.failedChan <- e:
	default:
		// never block
	}
}
