package telemetry

import (
	"github.com/stretchr/testify/mock"
)

// Ensure MockSink implements Sink
var _ Sink = (*MockSink)(nil)

// MockSink is a testify mock of Sink.
type MockSink struct {
	mock.Mock
}

// Publish (Mocked)
func (m *MockSink) Publish(ev Event) {
	m.Called(ev)
}
