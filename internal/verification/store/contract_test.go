package store

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"patientflow/internal/verification/models"
)

// StoreContractSuite runs the same behaviour checks against every Factory.
type StoreContractSuite struct {
	suite.Suite
	factory Factory
	ctx     context.Context
}

func somchai() models.PatientIdentity {
	birth := time.Date(1980, 11, 20, 0, 0, 0, 0, time.UTC)
	return models.PatientIdentity{
		ID:          "P000001",
		DisplayName: "Somchai Jaidee",
		NationalID:  "1234567890123",
		BirthDate:   &birth,
		DerivedAge:  45,
	}
}

func (s *StoreContractSuite) TestSaveAndLoad() {
	st := s.factory.Scope("kiosk-1")
	s.Require().NoError(st.Save(s.ctx, somchai(), "tok-1"))

	p, tok, err := st.Load(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(p)
	s.Equal("Somchai Jaidee", p.DisplayName)
	s.Equal(45, p.DerivedAge)
	s.True(p.BirthDate.Equal(*somchai().BirthDate))
	s.Equal(models.SessionToken("tok-1"), tok)
}

func (s *StoreContractSuite) TestSaveOverwritesPreviousToken() {
	st := s.factory.Scope("kiosk-2")
	s.Require().NoError(st.Save(s.ctx, somchai(), "old"))
	s.Require().NoError(st.Save(s.ctx, models.PatientIdentity{ID: "P2", DisplayName: "Malee"}, ""))

	p, tok, err := st.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal("Malee", p.DisplayName)
	s.True(tok.IsEmpty(), "stale token must not survive a new save")
}

func (s *StoreContractSuite) TestClear() {
	st := s.factory.Scope("kiosk-3")
	s.Require().NoError(st.Save(s.ctx, somchai(), "tok"))
	s.Require().NoError(st.Clear(s.ctx))
	s.Require().NoError(st.Clear(s.ctx))

	p, tok, err := st.Load(s.ctx)
	s.Require().NoError(err)
	s.Nil(p)
	s.True(tok.IsEmpty())
}

func (s *StoreContractSuite) TestScopesAreIsolated() {
	a := s.factory.Scope("kiosk-a")
	b := s.factory.Scope("kiosk-b")
	s.Require().NoError(a.Save(s.ctx, somchai(), "tok-a"))

	p, _, err := b.Load(s.ctx)
	s.Require().NoError(err)
	s.Nil(p)

	s.Require().NoError(b.Clear(s.ctx))
	p, _, err = a.Load(s.ctx)
	s.Require().NoError(err)
	s.NotNil(p)
}
