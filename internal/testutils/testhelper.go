package testutils

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/srg/redtooth/internal/testutils/mocks"
)

// NewTestLogger returns a debug logger that only prints under go test -v.
func NewTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	if !testing.Verbose() {
		logger.SetOutput(io.Discard)
	}
	return logger
}

// StrPtr returns a pointer to s, for nullable payload fields
func StrPtr(s string) *string {
	return &s
}

// RadioSuite is a testify suite with a logger and a mocked radio.
//
//	type ControllerSuite struct {
//	    testutils.RadioSuite
//	}
//
//	func (suite *ControllerSuite) TestConnect() {
//	    suite.Radio.On("Connect", uint64(0xAABBCC)).Return(radio.StatusSuccess)
//	    ...
//	}
type RadioSuite struct {
	suite.Suite

	Logger *logrus.Logger
	Radio  *mocks.MockRadio
}

// SetupTest creates a fresh logger and mock for every test
func (suite *RadioSuite) SetupTest() {
	suite.Logger = NewTestLogger()
	suite.Radio = &mocks.MockRadio{}
}

// TearDownTest verifies every expectation set on the mock was met
func (suite *RadioSuite) TearDownTest() {
	suite.Radio.AssertExpectations(suite.T())
}
