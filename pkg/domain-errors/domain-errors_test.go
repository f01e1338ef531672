package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite tests the domain error primitives.
//
// These are used at every trust boundary; wrapped errors must keep their
// original code and errors.Is must match by code.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorInterface() {
	s.Run("returns message when present", func() {
		err := &Error{Code: CodeInsufficientCredits, Message: "no credits left"}
		s.Equal("no credits left", err.Error())
	})

	s.Run("returns code when message is empty", func() {
		err := &Error{Code: CodeInsufficientCredits}
		s.Equal("insufficient_credits", err.Error())
	})
}

func (s *DomainErrorsSuite) TestUnwrap() {
	inner := errors.New("connection refused")
	err := &Error{Code: CodeUnavailable, Message: "store down", Err: inner}
	s.Equal(inner, errors.Unwrap(err))
	s.ErrorIs(err, inner)
}

func (s *DomainErrorsSuite) TestIsMatchesByCode() {
	err1 := &Error{Code: CodeInsufficientCredits, Message: "a"}
	err2 := &Error{Code: CodeInsufficientCredits, Message: "b"}
	s.True(errors.Is(err1, err2))
	s.False(errors.Is(err1, &Error{Code: CodeUnavailable}))
	s.False(err1.Is(errors.New("plain")))
}

func (s *DomainErrorsSuite) TestWrapPreservesCode() {
	s.Run("keeps existing domain code", func() {
		base := New(CodeInsufficientCredits, "drained")
		wrapped := Wrap(base, CodeInternal, "debit failed")
		s.True(HasCode(wrapped, CodeInsufficientCredits))
		s.Equal("debit failed", wrapped.Error())
	})

	s.Run("applies code to plain errors", func() {
		wrapped := Wrap(errors.New("timeout"), CodeUnavailable, "store unavailable")
		s.True(HasCode(wrapped, CodeUnavailable))
	})

	s.Run("finds code through fmt wrapping", func() {
		err := fmt.Errorf("outer: %w", New(CodeConflict, "busy"))
		s.Equal(CodeConflict, CodeOf(err))
	})

	s.Run("plain errors are internal", func() {
		s.Equal(CodeInternal, CodeOf(errors.New("boom")))
	})
}
