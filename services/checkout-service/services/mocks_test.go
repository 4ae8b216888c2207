package services_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/ahambrahmasmi/storefront/services/checkout-service/ledger"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/models"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/providers"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/repository"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/services"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/signature"
)

// ---- order store ----

type memOrderRepo struct {
	mu        sync.Mutex
	byPayment map[string]models.Order
	createErr error
	findErr   error
	updates   []string
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{byPayment: map[string]models.Order{}}
}

func (m *memOrderRepo) Create(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.byPayment[o.PaymentRef]; ok {
		return repository.ErrDuplicateOrder
	}
	for _, existing := range m.byPayment {
		if existing.OrderRef == o.OrderRef {
			return repository.ErrDuplicateOrder
		}
	}
	m.byPayment[o.PaymentRef] = *o
	return nil
}

func (m *memOrderRepo) FindByPaymentRef(_ context.Context, ref string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	o, ok := m.byPayment[ref]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (m *memOrderRepo) FindByOrderRef(_ context.Context, ref string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byPayment {
		if o.OrderRef == ref {
			o := o
			return &o, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *memOrderRepo) UpdateLedgerStatus(_ context.Context, ref, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byPayment[ref]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.LedgerStatus = status
	m.byPayment[ref] = o
	m.updates = append(m.updates, status)
	return nil
}

func (m *memOrderRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byPayment)
}

// ---- intent snapshots ----

type memIntentRepo struct {
	mu      sync.Mutex
	intents map[string]models.CheckoutIntent
	saveErr error
}

func newMemIntentRepo() *memIntentRepo {
	return &memIntentRepo{intents: map[string]models.CheckoutIntent{}}
}

func (m *memIntentRepo) Save(_ context.Context, ci *models.CheckoutIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.intents[ci.IntentID] = *ci
	return nil
}

func (m *memIntentRepo) FindByIntentID(_ context.Context, id string) (*models.CheckoutIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ci, ok := m.intents[id]
	if !ok {
		return nil, repository.ErrIntentNotFound
	}
	return &ci, nil
}

// ---- ledger ----

type fakeLedger struct {
	mu        sync.Mutex
	orders    []models.Order
	designs   []models.DesignSubmission
	appendErr error
}

func (l *fakeLedger) AppendOrder(_ context.Context, o *models.Order) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		return l.appendErr
	}
	for _, existing := range l.orders {
		if existing.PaymentRef == o.PaymentRef {
			return &ledger.DuplicateError{OrderRef: existing.OrderRef}
		}
	}
	l.orders = append(l.orders, *o)
	return nil
}

func (l *fakeLedger) AppendDesignRequest(_ context.Context, s *models.DesignSubmission) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		return l.appendErr
	}
	l.designs = append(l.designs, *s)
	return nil
}

func (l *fakeLedger) rows() []models.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Order(nil), l.orders...)
}

// ---- gateway ----

const testSecret = "rzp_test_secret"

type fakeGateway struct {
	mu         sync.Mutex
	created    []providers.IntentRequest
	fetched    []string
	createErr  error
	fetchErr   error
	payments   map[string]*models.PaymentIntent
	nextIntent string
	secret     string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: map[string]*models.PaymentIntent{}, nextIntent: "order_TEST1", secret: testSecret}
}

func (g *fakeGateway) Name() string           { return providers.GatewayRazorpay }
func (g *fakeGateway) PublicKey() string      { return "rzp_test_key" }
func (g *fakeGateway) CallbackSecret() string { return g.secret }

func (g *fakeGateway) CreateIntent(_ context.Context, req providers.IntentRequest) (*models.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, req)
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &models.PaymentIntent{
		IntentID:    g.nextIntent,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Status:      models.PaymentStatusCreated,
		Receipt:     req.Receipt,
	}, nil
}

func (g *fakeGateway) FetchPayment(_ context.Context, ref string) (*models.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetched = append(g.fetched, ref)
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	p, ok := g.payments[ref]
	if !ok {
		return nil, errors.New("payment not found")
	}
	cp := *p
	return &cp, nil
}

// capture registers a captured payment for intentID.
func (g *fakeGateway) capture(intentID, paymentRef string, amount int64) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[paymentRef] = &models.PaymentIntent{
		IntentID:    intentID,
		PaymentRef:  paymentRef,
		AmountMinor: amount,
		Currency:    "INR",
		Status:      models.PaymentStatusCaptured,
		Method:      "upi",
	}
	return signature.Sign(intentID, paymentRef, testSecret)
}

// ---- events and queue ----

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e models.OrderEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeSender struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (s *fakeSender) SendMessage(_ context.Context, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, body)
	return nil
}

// ---- uploads ----

type fakeUploader struct {
	mu    sync.Mutex
	keys  []string
	fail  map[string]bool
	bytes map[string]string
}

func (u *fakeUploader) Upload(_ context.Context, key, _ string, body io.Reader) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for name := range u.fail {
		if strings.HasSuffix(key, name) {
			return "", errors.New("s3 unavailable")
		}
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if u.bytes == nil {
		u.bytes = map[string]string{}
	}
	u.bytes[key] = string(b)
	u.keys = append(u.keys, key)
	return "https://uploads.example.com/" + key, nil
}

func imageFile(name, contentType, content string) services.DesignImage {
	return services.DesignImage{
		FileName:    name,
		ContentType: contentType,
		Size:        int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}
