package mq

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	pkgerrors "MediCare/pkg/errors"
)

type fakeAck struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAck) Ack(bool) error {
	f.acked = true
	return nil
}

func (f *fakeAck) Nack(_ bool, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

func TestSettle(t *testing.T) {
	boom := errors.New("db down")
	skip := fmt.Errorf("wrapped: %w", &pkgerrors.SkipMessageError{Reason: "duplicate"})

	tests := []struct {
		name        string
		redelivered bool
		err         error
		want        string
		acked       bool
		requeue     bool
	}{
		{"success", false, nil, "ack", true, false},
		{"duplicate", true, skip, "skip", true, false},
		{"first failure", false, boom, "requeue", false, true},
		{"second failure", true, boom, "drop", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeAck{}
			assert.Equal(t, tt.want, settle(a, tt.redelivered, tt.err))
			assert.Equal(t, tt.acked, a.acked)
			assert.Equal(t, !tt.acked, a.nacked)
			assert.Equal(t, tt.requeue, a.requeue)
		})
	}
}
