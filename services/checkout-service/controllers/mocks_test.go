package controllers

import (
	"context"

	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/services"
	"github.com/stretchr/testify/mock"
)

// --- Mock Services ---

type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) Quote(lines []models.CartLine) (*models.QuoteResponse, error) {
	args := m.Called(lines)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QuoteResponse), args.Error(1)
}

func (m *MockCheckoutService) CreateIntent(ctx context.Context, req models.CheckoutRequest, clientKey string) (*models.CheckoutResponse, error) {
	args := m.Called(ctx, req, clientKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckoutResponse), args.Error(1)
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) VerifyPayment(ctx context.Context, req models.VerifyPaymentRequest) (*models.VerifyPaymentResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VerifyPaymentResponse), args.Error(1)
}

func (m *MockPaymentService) ConfirmCaptured(ctx context.Context, payment *models.PaymentIntent) (*services.RecordResult, error) {
	args := m.Called(ctx, payment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RecordResult), args.Error(1)
}

type MockDesignRequestService struct {
	mock.Mock
}

func (m *MockDesignRequestService) Submit(ctx context.Context, req models.DesignRequest, images []services.DesignImage) (*models.DesignSubmission, error) {
	args := m.Called(ctx, req, images)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DesignSubmission), args.Error(1)
}

type MockOrderRecorder struct {
	mock.Mock
}

func (m *MockOrderRecorder) Record(ctx context.Context, in services.RecordInput) (*services.RecordResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RecordResult), args.Error(1)
}

func (m *MockOrderRecorder) Lookup(ctx context.Context, orderRef string) (*models.Order, error) {
	args := m.Called(ctx, orderRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}
