package domainerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite tests the domain error primitives.
//
// Justification: these are the error primitives crossed at every trust boundary.
// Unit tests ensure invariants like "wrapped domain errors preserve original code"
// and "errors.Is matches by code" are maintained.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorInterface() {
	s.Run("returns message when present", func() {
		err := &Error{Code: CodeMissingConsent, Message: "health_data_processing consent not granted"}
		s.Equal("health_data_processing consent not granted", err.Error())
	})

	s.Run("returns code when message is empty", func() {
		err := &Error{Code: CodeTamperDetected}
		s.Equal("tamper_detected", err.Error())
	})
}

func (s *DomainErrorsSuite) TestUnwrap() {
	s.Run("returns wrapped error", func() {
		inner := errors.New("cipher: message authentication failed")
		err := &Error{Code: CodeTamperDetected, Message: "envelope failed verification", Err: inner}
		s.Equal(inner, err.Unwrap())
	})

	s.Run("returns nil when no wrapped error", func() {
		err := &Error{Code: CodeNotFound, Message: "not found"}
		s.Nil(err.Unwrap())
	})
}

func (s *DomainErrorsSuite) TestIsMatching() {
	s.Run("matches by code only", func() {
		err1 := &Error{Code: CodeDuplicateRequest, Message: "erasure already pending"}
		err2 := &Error{Code: CodeDuplicateRequest, Message: "other"}
		s.True(err1.Is(err2))
	})

	s.Run("does not match different codes", func() {
		err1 := &Error{Code: CodeKeyNotFound}
		err2 := &Error{Code: CodeTamperDetected}
		s.False(err1.Is(err2))
	})

	s.Run("works with errors.Is through chain", func() {
		inner := &Error{Code: CodeKeyNotFound, Message: "version 3 destroyed"}
		wrapped := &Error{Code: CodeInternal, Message: "decrypt failed", Err: inner}
		target := &Error{Code: CodeKeyNotFound}
		s.True(errors.Is(wrapped, target))
	})
}

func (s *DomainErrorsSuite) TestWrapPreservesCode() {
	inner := New(CodeInvalidState, "request already cancelled")
	wrapped := Wrap(inner, CodeInternal, "cancel erasure request")

	s.True(HasCode(wrapped, CodeInvalidState))
	s.False(HasCode(wrapped, CodeInternal))
}

func (s *DomainErrorsSuite) TestHasCode() {
	s.Run("plain errors have no code", func() {
		s.False(HasCode(errors.New("boom"), CodeInternal))
	})

	s.Run("nil error has no code", func() {
		s.False(HasCode(nil, CodeInternal))
	})
}
