package bus_test

import (
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/sarchlab/mesi4sim/coherence"
)

// MockSnoopable is a hand-written gomock double for bus.Snoopable. It is
// written by hand, in the shape mockgen would generate, rather than
// code-generated, since bus.Snoopable is the only interface in this module
// that benefits from call-count verification rather than a simple fake.
type MockSnoopable struct {
	ctrl     *gomock.Controller
	recorder *MockSnoopableMockRecorder
}

type MockSnoopableMockRecorder struct {
	mock *MockSnoopable
}

func NewMockSnoopable(ctrl *gomock.Controller) *MockSnoopable {
	m := &MockSnoopable{ctrl: ctrl}
	m.recorder = &MockSnoopableMockRecorder{m}

	return m
}

func (m *MockSnoopable) EXPECT() *MockSnoopableMockRecorder {
	return m.recorder
}

func (m *MockSnoopable) ID() int {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ID")
	id, _ := ret[0].(int)

	return id
}

func (mr *MockSnoopableMockRecorder) ID() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ID", reflect.TypeOf((*MockSnoopable)(nil).ID))
}

func (m *MockSnoopable) Snoop(reqType coherence.ReqType, addr uint64, atCycle uint64) bool {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Snoop", reqType, addr, atCycle)
	supplied, _ := ret[0].(bool)

	return supplied
}

func (mr *MockSnoopableMockRecorder) Snoop(reqType, addr, atCycle interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Snoop",
		reflect.TypeOf((*MockSnoopable)(nil).Snoop), reqType, addr, atCycle)
}

func (m *MockSnoopable) NotifyCompletion(addr uint64, newState coherence.State, atCycle uint64) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "NotifyCompletion", addr, newState, atCycle)
}

func (mr *MockSnoopableMockRecorder) NotifyCompletion(addr, newState, atCycle interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "NotifyCompletion",
		reflect.TypeOf((*MockSnoopable)(nil).NotifyCompletion), addr, newState, atCycle)
}
