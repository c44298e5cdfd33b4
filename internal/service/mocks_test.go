package service

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/kurisync/internal/model"
)

// MockRegistrySource mocks the RegistrySource interface
type MockRegistrySource struct {
	mock.Mock
}

func (m *MockRegistrySource) Fetch(ctx context.Context) (model.Registry, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.Registry), args.Error(1)
}

// MockLedgerSource mocks the LedgerSource interface
type MockLedgerSource struct {
	mock.Mock
}

func (m *MockLedgerSource) SlotCount(ctx context.Context, contract string) (int, error) {
	args := m.Called(ctx, contract)
	return args.Int(0), args.Error(1)
}

func (m *MockLedgerSource) CurrentRound(ctx context.Context, contract string) (int, error) {
	args := m.Called(ctx, contract)
	return args.Int(0), args.Error(1)
}

func (m *MockLedgerSource) Participants(ctx context.Context, contract string) ([]string, error) {
	args := m.Called(ctx, contract)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockLedgerSource) HasPaidRound(ctx context.Context, contract, user string, round int) (bool, error) {
	args := m.Called(ctx, contract, user, round)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerSource) HasBidRound(ctx context.Context, contract, user string, round int) (bool, error) {
	args := m.Called(ctx, contract, user, round)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerSource) WonRound(ctx context.Context, contract, user string) (int, error) {
	args := m.Called(ctx, contract, user)
	return args.Int(0), args.Error(1)
}

func (m *MockLedgerSource) HasWon(ctx context.Context, contract, user string) (bool, error) {
	args := m.Called(ctx, contract, user)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerSource) TotalContributions(ctx context.Context, contract, user string) (int64, error) {
	args := m.Called(ctx, contract, user)
	return args.Get(0).(int64), args.Error(1)
}

// MockUserStore mocks the UserStore interface
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Upsert(ctx context.Context, patch model.UserPatch) (model.User, error) {
	args := m.Called(ctx, patch)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserStore) GetByAddress(ctx context.Context, address string) (model.User, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserStore) List(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *MockUserStore) ListByAddresses(ctx context.Context, addresses []string) ([]model.User, error) {
	args := m.Called(ctx, addresses)
	return args.Get(0).([]model.User), args.Error(1)
}

// MockLedgerStore mocks the LedgerStore interface
type MockLedgerStore struct {
	mock.Mock
}

func (m *MockLedgerStore) Upsert(ctx context.Context, patch model.LedgerPatch) (model.Ledger, error) {
	args := m.Called(ctx, patch)
	return args.Get(0).(model.Ledger), args.Error(1)
}

func (m *MockLedgerStore) GetByAddress(ctx context.Context, address string) (model.Ledger, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(model.Ledger), args.Error(1)
}

func (m *MockLedgerStore) List(ctx context.Context) ([]model.Ledger, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Ledger), args.Error(1)
}

func (m *MockLedgerStore) ListByParticipant(ctx context.Context, address string) ([]model.Ledger, error) {
	args := m.Called(ctx, address)
	return args.Get(0).([]model.Ledger), args.Error(1)
}

// MockStatusStore mocks the StatusStore interface
type MockStatusStore struct {
	mock.Mock
}

func (m *MockStatusStore) Upsert(ctx context.Context, patch model.StatusPatch) (model.Status, error) {
	args := m.Called(ctx, patch)
	return args.Get(0).(model.Status), args.Error(1)
}

func (m *MockStatusStore) Get(ctx context.Context, userAddress, contractAddress string) (model.Status, error) {
	args := m.Called(ctx, userAddress, contractAddress)
	return args.Get(0).(model.Status), args.Error(1)
}

func (m *MockStatusStore) ListByContract(ctx context.Context, contractAddress string) ([]model.Status, error) {
	args := m.Called(ctx, contractAddress)
	return args.Get(0).([]model.Status), args.Error(1)
}

// MockStorage mocks the Storage interface
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Upload(ctx context.Context, key string, reader io.Reader) error {
	args := m.Called(ctx, key, reader)
	return args.Error(0)
}

func (m *MockStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *MockStorage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// MockEventPublisher mocks the EventPublisher interface
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, subject string, payload any) error {
	args := m.Called(ctx, subject, payload)
	return args.Error(0)
}

// MockTokenManager mocks the TokenManager interface
type MockTokenManager struct {
	mock.Mock
}

func (m *MockTokenManager) GenerateOperatorToken(subject string) (string, error) {
	args := m.Called(subject)
	return args.String(0), args.Error(1)
}

func (m *MockTokenManager) ParseOperatorToken(token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}
