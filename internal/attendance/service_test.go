package attendance_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"qrscan/internal/attendance"
	"qrscan/internal/attendance/events"
	"qrscan/internal/attendance/mocks"
	"qrscan/internal/scanner/ledger"
	"qrscan/pkg/domain"
	"qrscan/pkg/platform/privacy"
)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	backend   *mocks.MockBackend
	ledger    *ledger.Memory
	publisher *events.Memory
	service   *attendance.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.backend = mocks.NewMockBackend(s.ctrl)
	s.ledger = ledger.NewMemory()
	s.publisher = events.NewMemory()
	hasher, err := privacy.NewHasher([]byte("test-key"))
	s.Require().NoError(err)
	s.service, err = attendance.NewService(s.backend, hasher, attendance.WithLedger(s.ledger), attendance.WithPublisher(s.publisher), attendance.WithClaimTTL(time.Hour))
	s.Require().NoError(err)
}

var ana = &attendance.Validation{Valid: true, Student: &attendance.Student{DNI: "12345678", Names: "Ana", Surnames: "Quispe"}}

func (s *ServiceSuite) TestRegistered() {
	dni := domain.DNI("12345678")
	s.backend.EXPECT().Validate(gomock.Any(), dni).Return(ana, nil)
	s.backend.EXPECT().Register(gomock.Any(), dni).Return(&attendance.Registration{}, nil)

	rec := s.service.Process(context.Background(), dni)

	s.Equal(attendance.OutcomeRegistered, rec.Outcome)
	s.Equal("Ana Quispe", rec.StudentName)
	s.Equal("****5678", rec.DNI)
	s.False(rec.ProcessedAt.IsZero())

	published := s.publisher.Events()
	s.Require().Len(published, 1)
	s.Equal(events.TypeCheckIn, published[0].Type)
	s.NotContains(published[0].SubjectHash, "12345678")
}

func (s *ServiceSuite) TestSecondScanIsDuplicate() {
	dni := domain.DNI("12345678")
	s.backend.EXPECT().Validate(gomock.Any(), dni).Return(ana, nil).Times(1)
	s.backend.EXPECT().Register(gomock.Any(), dni).Return(&attendance.Registration{}, nil).Times(1)

	s.service.Process(context.Background(), dni)
	rec := s.service.Process(context.Background(), dni)

	s.Equal(attendance.OutcomeDuplicate, rec.Outcome)
	published := s.publisher.Events()
	s.Require().Len(published, 2)
	s.Equal(events.TypeSkipped, published[1].Type)
}

func (s *ServiceSuite) TestNotFoundReleasesClaim() {
	dni := domain.DNI("12345678")
	s.backend.EXPECT().Validate(gomock.Any(), dni).Return(nil, attendance.ErrStudentNotFound).Times(2)

	rec := s.service.Process(context.Background(), dni)
	s.Equal(attendance.OutcomeNotFound, rec.Outcome)

	rec = s.service.Process(context.Background(), dni)
	s.Equal(attendance.OutcomeNotFound, rec.Outcome, "claim released, lookup repeated")
}

func (s *ServiceSuite) TestInvalidQR() {
	dni := domain.DNI("12345678")
	s.backend.EXPECT().Validate(gomock.Any(), dni).Return(&attendance.Validation{Valid: false}, nil)

	rec := s.service.Process(context.Background(), dni)

	s.Equal(attendance.OutcomeInvalid, rec.Outcome)
	s.Equal(events.TypeRejected, s.publisher.Events()[0].Type)
}

func (s *ServiceSuite) TestRejectedKeepsClaim() {
	dni := domain.DNI("12345678")
	s.backend.EXPECT().Validate(gomock.Any(), dni).Return(ana, nil).Times(1)
	s.backend.EXPECT().Register(gomock.Any(), dni).Return(nil, &attendance.RejectedError{Message: "ya registrado"}).Times(1)

	rec := s.service.Process(context.Background(), dni)
	s.Equal(attendance.OutcomeRejected, rec.Outcome)
	s.Equal("ya registrado", rec.Message)

	rec = s.service.Process(context.Background(), dni)
	s.Equal(attendance.OutcomeDuplicate, rec.Outcome)
}

func (s *ServiceSuite) TestUpstreamFailureReleasesClaim() {
	dni := domain.DNI("12345678")
	s.backend.EXPECT().Validate(gomock.Any(), dni).Return(ana, nil).Times(2)
	gomock.InOrder(
		s.backend.EXPECT().Register(gomock.Any(), dni).Return(nil, errors.New("boom")),
		s.backend.EXPECT().Register(gomock.Any(), dni).Return(&attendance.Registration{}, nil),
	)

	s.Equal(attendance.OutcomeFailed, s.service.Process(context.Background(), dni).Outcome)
	s.Equal(attendance.OutcomeRegistered, s.service.Process(context.Background(), dni).Outcome)
}

func (s *ServiceSuite) TestNewServiceValidation() {
	hasher, err := privacy.NewHasher([]byte("k"))
	s.Require().NoError(err)

	_, err = attendance.NewService(nil, hasher)
	s.Error(err)
	_, err = attendance.NewService(s.backend, nil)
	s.Error(err)
}
