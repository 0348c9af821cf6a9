package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/escrow-market/internal/models"
	"github.com/ignatzorin/escrow-market/internal/payment"
	"github.com/ignatzorin/escrow-market/internal/pkg/money"
	"github.com/ignatzorin/escrow-market/internal/queue"
	"github.com/ignatzorin/escrow-market/internal/repository"
)

// memStore хранилище в памяти с теми же переходами и записями журнала, что и репозитории.
type memStore struct {
	mu sync.Mutex

	users     map[uuid.UUID]*models.User
	userOrder []uuid.UUID
	wallets   map[uuid.UUID]*models.Wallet
	txs       []models.Transaction
	deals     map[uuid.UUID]*models.Deal
	disputes  map[uuid.UUID]*models.Dispute
	payouts   map[uuid.UUID]*models.PayoutRequest
	projects  map[uuid.UUID]*models.Project
	proposals map[uuid.UUID]*models.Proposal
	invites   []models.ProjectInvite

	setPaymentErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[uuid.UUID]*models.User{},
		wallets:   map[uuid.UUID]*models.Wallet{},
		deals:     map[uuid.UUID]*models.Deal{},
		disputes:  map[uuid.UUID]*models.Dispute{},
		payouts:   map[uuid.UUID]*models.PayoutRequest{},
		projects:  map[uuid.UUID]*models.Project{},
		proposals: map[uuid.UUID]*models.Proposal{},
	}
}

func (s *memStore) addUser(role, plan string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{
		ID:          uuid.New(),
		Email:       fmt.Sprintf("%s-%d@example.com", role, len(s.users)),
		DisplayName: fmt.Sprintf("%s %d", role, len(s.users)),
		Role:        role,
		Plan:        plan,
	}
	s.users[u.ID] = u
	s.userOrder = append(s.userOrder, u.ID)
	return u
}

func (s *memStore) setBalance(userID uuid.UUID, balance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureWallet(userID).Balance = balance
}

func (s *memStore) balance(userID uuid.UUID) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.wallets[userID]; ok {
		return w.Balance
	}
	return 0
}

func (s *memStore) hasWallet(userID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.wallets[userID]
	return ok
}

func (s *memStore) txsFor(userID uuid.UUID) []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for _, tx := range s.txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out
}

func (s *memStore) deal(id uuid.UUID) *models.Deal {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deals[id]
	if !ok {
		return nil
	}
	cp := *d
	return &cp
}

func (s *memStore) addProject(clientID uuid.UUID, budget float64, skills ...string) *models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &models.Project{ID: uuid.New(), ClientID: clientID, Title: "Bot", Description: "Telegram bot", Budget: budget, Skills: skills}
	s.projects[p.ID] = p
	return p
}

func (s *memStore) addProposal(projectID, freelancerID uuid.UUID) *models.Proposal {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &models.Proposal{ID: uuid.New(), ProjectID: projectID, FreelancerID: freelancerID, Content: "I can do it"}
	s.proposals[p.ID] = p
	return p
}

func (s *memStore) addDeal(senderID, receiverID uuid.UUID, amount float64, status string) *models.Deal {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &models.Deal{
		ID:         uuid.New(),
		ProjectID:  uuid.New(),
		ProposalID: uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Amount:     amount,
		Currency:   money.DefaultCurrency,
		Status:     status,
	}
	if status == models.DealStatusEscrowed || status == models.DealStatusReleased {
		now := time.Now()
		d.EscrowedAt = &now
	}
	s.deals[d.ID] = d
	cp := *d
	return &cp
}

func (s *memStore) ensureWallet(userID uuid.UUID) *models.Wallet {
	w, ok := s.wallets[userID]
	if !ok {
		w = &models.Wallet{ID: uuid.New(), UserID: userID, Currency: money.DefaultCurrency}
		s.wallets[userID] = w
	}
	return w
}

func (s *memStore) debit(userID uuid.UUID, amount float64) error {
	w, ok := s.wallets[userID]
	if !ok {
		return repository.ErrWalletNotFound
	}
	if w.Balance < amount {
		return repository.ErrInsufficientFunds
	}
	w.Balance = money.Sub(w.Balance, amount)
	return nil
}

func (s *memStore) credit(userID uuid.UUID, amount float64) {
	w := s.ensureWallet(userID)
	w.Balance = money.Add(w.Balance, amount)
}

func (s *memStore) book(userID uuid.UUID, dealID, payoutID *uuid.UUID, typ string, amount float64, desc string) {
	s.txs = append(s.txs, models.Transaction{
		ID:              uuid.New(),
		UserID:          userID,
		DealID:          dealID,
		PayoutRequestID: payoutID,
		Type:            typ,
		Amount:          amount,
		Description:     desc,
		CreatedAt:       time.Now(),
	})
}

func (s *memStore) bookRelease(receiverID, dealID uuid.UUID, base float64, split money.Split, firstDesc string) {
	s.credit(receiverID, split.NetForUser)
	s.book(receiverID, &dealID, nil, models.TransactionTypeEscrowRelease, base, firstDesc)
	s.book(receiverID, &dealID, nil, models.TransactionTypeCredit, split.NetForUser, "Net payout for deal "+dealID.String())
	s.book(receiverID, &dealID, nil, models.TransactionTypeFee, split.Fee, "Platform commission for deal "+dealID.String())
}

type memUsers struct{ *memStore }

func (r memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memUsers) ListByRole(_ context.Context, role string) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, id := range r.userOrder {
		if u := r.users[id]; u.Role == role {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r memUsers) SetGatewayCustomerID(_ context.Context, id uuid.UUID, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.GatewayCustomerID = &customerID
	return nil
}

type memDeals struct{ *memStore }

func (r memDeals) Create(_ context.Context, d *models.Deal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	cp := *d
	r.deals[d.ID] = &cp
	return nil
}

func (r memDeals) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.deals[id]; ok && d.Status == models.DealStatusCreated {
		delete(r.deals, id)
	}
	return nil
}

func (r memDeals) GetByID(_ context.Context, id uuid.UUID) (*models.Deal, error) {
	if d := r.deal(id); d != nil {
		return d, nil
	}
	return nil, repository.ErrDealNotFound
}

func (r memDeals) SetEscrowPaymentID(_ context.Context, id uuid.UUID, paymentID string) (*models.Deal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setPaymentErr != nil {
		return nil, r.setPaymentErr
	}
	d, ok := r.deals[id]
	if !ok {
		return nil, repository.ErrDealNotFound
	}
	d.EscrowPaymentID = &paymentID
	cp := *d
	return &cp, nil
}

func (r memDeals) MarkFunded(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deals[id]
	if !ok || d.EscrowedAt != nil {
		return false, nil
	}
	switch d.Status {
	case models.DealStatusCreated:
		d.Status = models.DealStatusEscrowed
	case models.DealStatusDispute:
	default:
		return false, nil
	}
	now := time.Now()
	d.EscrowedAt = &now
	return true, nil
}

func (r memDeals) Release(_ context.Context, id uuid.UUID, split money.Split) (*models.Deal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deals[id]
	if !ok || d.Status != models.DealStatusEscrowed {
		return nil, repository.ErrDealStateChanged
	}
	d.Status = models.DealStatusReleased
	r.bookRelease(d.ReceiverID, d.ID, d.Amount, split, "Release funds for deal "+d.ID.String())
	cp := *d
	return &cp, nil
}

func (r memDeals) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]models.Deal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Deal
	for _, d := range r.deals {
		if d.IsParticipant(userID) {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memDeals) ListReleasedWithSkills(_ context.Context) ([]models.ReleasedDealRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ReleasedDealRecord
	for _, d := range r.deals {
		if d.Status != models.DealStatusReleased {
			continue
		}
		rec := models.ReleasedDealRecord{ReceiverID: d.ReceiverID, Amount: d.Amount}
		if p, ok := r.projects[d.ProjectID]; ok {
			rec.ProjectSkills = p.Skills
		}
		out = append(out, rec)
	}
	return out, nil
}

type memDisputes struct{ *memStore }

func (r memDisputes) Open(_ context.Context, d *models.Dispute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	deal, ok := r.deals[d.DealID]
	if !ok {
		return repository.ErrDealStateChanged
	}
	if _, ok := models.DisputableDealStatuses[deal.Status]; !ok {
		return repository.ErrDealStateChanged
	}
	for _, existing := range r.disputes {
		if existing.DealID == d.DealID && existing.Status == models.DisputeStatusOpen {
			return repository.ErrDisputeAlreadyOpen
		}
	}
	deal.Status = models.DealStatusDispute
	d.ID = uuid.New()
	d.Status = models.DisputeStatusOpen
	d.CreatedAt = time.Now()
	cp := *d
	r.disputes[d.ID] = &cp
	return nil
}

func (r memDisputes) GetByID(_ context.Context, id uuid.UUID) (*models.Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.disputes[id]
	if !ok {
		return nil, repository.ErrDisputeNotFound
	}
	cp := *d
	return &cp, nil
}

func (r memDisputes) ListByDeal(_ context.Context, dealID uuid.UUID) ([]models.Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Dispute
	for _, d := range r.disputes {
		if d.DealID == dealID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r memDisputes) Resolve(_ context.Context, id uuid.UUID, st repository.DisputeSettlement) (*models.Dispute, *models.Deal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.disputes[id]
	if !ok || d.Status != models.DisputeStatusOpen {
		return nil, nil, repository.ErrDisputeStateChanged
	}
	deal, ok := r.deals[d.DealID]
	if !ok || deal.Status != models.DealStatusDispute {
		return nil, nil, repository.ErrDealStateChanged
	}
	if st.Credit != nil && !deal.IsFunded() {
		return nil, nil, repository.ErrDealNotFunded
	}

	resolution := st.Resolution
	resolvedBy := st.ResolvedByID
	resolvedAt := st.ResolvedAt
	d.Status = models.DisputeStatusResolved
	d.Resolution = &resolution
	d.Amount = st.Amount
	d.ResolvedByID = &resolvedBy
	d.ResolvedAt = &resolvedAt
	deal.Status = st.DealStatus

	desc := fmt.Sprintf("Dispute %s resolved: %s", d.ID, st.Resolution)
	switch {
	case st.Credit == nil && !deal.IsFunded():
		// без оплаты возвращать нечего
	case st.Credit == nil:
		r.book(deal.SenderID, &deal.ID, nil, models.TransactionTypeEscrowRelease, st.ReleaseAmount, desc)
	default:
		r.bookRelease(deal.ReceiverID, deal.ID, st.ReleaseAmount, *st.Credit, desc)
	}

	dCopy, dealCopy := *d, *deal
	return &dCopy, &dealCopy, nil
}

type memPayouts struct{ *memStore }

func (r memPayouts) Create(_ context.Context, userID uuid.UUID, amount, fee float64) (*models.PayoutRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.debit(userID, amount); err != nil {
		return nil, err
	}
	p := &models.PayoutRequest{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    amount,
		Fee:       fee,
		Status:    models.PayoutStatusPending,
		CreatedAt: time.Now(),
	}
	r.payouts[p.ID] = p
	r.book(userID, nil, &p.ID, models.TransactionTypeWithdrawal, amount, "Payout request #"+p.ID.String())
	r.book(userID, nil, &p.ID, models.TransactionTypeFee, fee, "Payout fee for request #"+p.ID.String())
	cp := *p
	return &cp, nil
}

func (r memPayouts) GetByID(_ context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payouts[id]
	if !ok {
		return nil, repository.ErrPayoutNotFound
	}
	cp := *p
	return &cp, nil
}

func (r memPayouts) MarkProcessed(_ context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payouts[id]
	if !ok || p.Status != models.PayoutStatusPending {
		return nil, repository.ErrPayoutStateChanged
	}
	now := time.Now()
	p.Status = models.PayoutStatusProcessed
	p.ProcessedAt = &now
	cp := *p
	return &cp, nil
}

func (r memPayouts) ListByUser(_ context.Context, userID uuid.UUID, limit, _ int) ([]models.PayoutRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PayoutRequest
	for _, p := range r.payouts {
		if p.UserID == userID && len(out) < limit {
			out = append(out, *p)
		}
	}
	return out, nil
}

type memWallets struct{ *memStore }

func (r memWallets) GetByUserID(_ context.Context, userID uuid.UUID) (*models.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[userID]
	if !ok {
		return nil, repository.ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (r memWallets) ListTransactions(_ context.Context, userID uuid.UUID, limit, _ int) ([]models.Transaction, error) {
	txs := r.txsFor(userID)
	if len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func (r memWallets) PurchaseBoost(_ context.Context, userID uuid.UUID, price float64, days int, now time.Time) (*models.BoostPurchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if err := r.debit(userID, price); err != nil {
		return nil, err
	}
	base := now
	if u.BoostedUntil != nil && u.BoostedUntil.After(now) {
		base = *u.BoostedUntil
	}
	until := base.AddDate(0, 0, days)
	u.BoostedUntil = &until
	r.book(userID, nil, nil, models.TransactionTypeFee, price, fmt.Sprintf("Profile boost for %d days", days))
	w := r.wallets[userID]
	return &models.BoostPurchase{
		Charged:      price,
		Currency:     w.Currency,
		BoostedUntil: until,
		Days:         days,
		Balance:      w.Balance,
	}, nil
}

type memProjects struct{ *memStore }

func (r memProjects) Create(_ context.Context, p *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	r.projects[p.ID] = &cp
	return nil
}

func (r memProjects) GetByID(_ context.Context, id uuid.UUID) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, repository.ErrProjectNotFound
	}
	cp := *p
	return &cp, nil
}

func (r memProjects) CreateProposal(_ context.Context, p *models.Proposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.proposals {
		if existing.ProjectID == p.ProjectID && existing.FreelancerID == p.FreelancerID {
			return repository.ErrProposalExists
		}
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	cp := *p
	r.proposals[p.ID] = &cp
	return nil
}

func (r memProjects) GetProposal(_ context.Context, id uuid.UUID) (*models.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proposals[id]
	if !ok {
		return nil, repository.ErrProposalNotFound
	}
	cp := *p
	return &cp, nil
}

func (r memProjects) HasProposal(_ context.Context, projectID, freelancerID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.proposals {
		if p.ProjectID == projectID && p.FreelancerID == freelancerID {
			return true, nil
		}
	}
	return false, nil
}

func (r memProjects) CountProposals(_ context.Context, projectID uuid.UUID) (int, error) {
	list, _ := r.ListProposals(context.Background(), projectID)
	return len(list), nil
}

func (r memProjects) ListProposals(_ context.Context, projectID uuid.UUID) ([]models.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Proposal
	for _, p := range r.proposals {
		if p.ProjectID == projectID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r memProjects) CreateInvite(_ context.Context, inv *models.ProjectInvite, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[inv.ProjectID]; !ok {
		return 0, repository.ErrProjectNotFound
	}
	used := 0
	for _, existing := range r.invites {
		if existing.ProjectID != inv.ProjectID {
			continue
		}
		if existing.FreelancerID == inv.FreelancerID {
			return 0, repository.ErrInviteExists
		}
		used++
	}
	if used >= limit {
		return 0, repository.ErrInviteQuotaExceeded
	}
	inv.ID = uuid.New()
	inv.CreatedAt = time.Now()
	r.invites = append(r.invites, *inv)
	return used + 1, nil
}

func (r memProjects) ListInvites(_ context.Context, projectID uuid.UUID) ([]models.ProjectInvite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ProjectInvite
	for _, inv := range r.invites {
		if inv.ProjectID == projectID {
			out = append(out, inv)
		}
	}
	return out, nil
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCustomer(ctx context.Context, user *models.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) CreatePaymentIntent(ctx context.Context, amountMinor int64, currency, customerID string, metadata map[string]string) (*payment.Intent, error) {
	args := m.Called(ctx, amountMinor, currency, customerID, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

func (m *mockGateway) ConstructEvent(payload []byte, signature string) (*payment.Event, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Event), args.Error(1)
}

// recordingNotifier запоминает поставленные задачи.
type recordingNotifier struct {
	mu     sync.Mutex
	emails []queue.EmailJob
	pushes []queue.PushJob
	err    error
}

func (n *recordingNotifier) EnqueueEmail(_ context.Context, job queue.EmailJob) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.emails = append(n.emails, job)
	return nil
}

func (n *recordingNotifier) EnqueuePush(_ context.Context, job queue.PushJob) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.pushes = append(n.pushes, job)
	return nil
}

func (n *recordingNotifier) pushesTo(userID uuid.UUID) []queue.PushJob {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []queue.PushJob
	for _, p := range n.pushes {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out
}

var errQueueDown = errors.New("queue down")
