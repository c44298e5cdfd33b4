package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dtroode/kurisync/internal/derive"
	"github.com/dtroode/kurisync/internal/logger"
	"github.com/dtroode/kurisync/internal/model"
)

// LedgerResult is one ledger of an on-demand refresh. Error is set when the
// ledger could not be stored; ReadErrors lists the chain reads that failed.
type LedgerResult struct {
	model.Ledger
	ReadErrors []model.EntityFailure `json:"readErrors,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// UserResult is one user of an on-demand refresh.
type UserResult struct {
	model.User
	Error string `json:"error,omitempty"`
}

// PaymentStatus is a freshly computed status with the reads that failed.
// A partial status lacks the rounds named in ReadErrors and was not stored.
type PaymentStatus struct {
	model.Status
	ReadErrors []model.EntityFailure `json:"readErrors,omitempty"`
	Partial    bool                  `json:"partial,omitempty"`
}

// Query serves stored and on-demand data to the read API.
type Query struct {
	registry    model.RegistrySource
	userStore   model.UserStore
	ledgerStore model.LedgerStore
	statusStore model.StatusStore
	sync        *Sync
	archive     *Archive
	logger      *logger.Logger
}

// NewQuery creates the read service. archive may be nil when snapshots are
// not kept.
func NewQuery(
	registry model.RegistrySource,
	userStore model.UserStore,
	ledgerStore model.LedgerStore,
	statusStore model.StatusStore,
	sync *Sync,
	archive *Archive,
	logger *logger.Logger,
) *Query {
	return &Query{
		registry:    registry,
		userStore:   userStore,
		ledgerStore: ledgerStore,
		statusStore: statusStore,
		sync:        sync,
		archive:     archive,
		logger:      logger,
	}
}

// Registry fetches the registry live without storing it.
func (q *Query) Registry(ctx context.Context) (model.Registry, error) {
	reg, err := q.registry.Fetch(ctx)
	if err != nil {
		return model.Registry{}, fmt.Errorf("failed to fetch registry: %w", err)
	}
	return reg, nil
}

// RefreshLedgers reads every registry ledger from the chain and stores it.
// A ledger that fails is annotated and never fails its siblings.
func (q *Query) RefreshLedgers(ctx context.Context) ([]LedgerResult, error) {
	reg, err := q.Registry(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]LedgerResult, len(reg.Ledgers))
	err = fanOut(ctx, q.sync.cfg.Concurrency, indexes(len(reg.Ledgers)), func(ctx context.Context, i int) {
		ref := reg.Ledgers[i]
		refresh, err := q.sync.RefreshLedger(ctx, ref)
		if err != nil {
			q.logger.Error("failed to refresh ledger", "contract", ref.ContractAddress, "error", err)
			results[i] = LedgerResult{
				Ledger: model.Ledger{ID: ref.ID, ContractAddress: model.NormalizeAddress(ref.ContractAddress)},
				Error:  err.Error(),
			}
			return
		}
		results[i] = LedgerResult{Ledger: refresh.Ledger, ReadErrors: refresh.Errors}
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// RefreshUsers stores every registry user.
func (q *Query) RefreshUsers(ctx context.Context) ([]UserResult, error) {
	reg, err := q.Registry(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]UserResult, len(reg.Users))
	err = fanOut(ctx, q.sync.cfg.Concurrency, indexes(len(reg.Users)), func(ctx context.Context, i int) {
		u := reg.Users[i]
		saved, err := retryStore(ctx, q.sync.cfg.Store, q.logger, "upsert user", func(ctx context.Context) (model.User, error) {
			return q.userStore.Upsert(ctx, model.PatchFromUser(u))
		})
		if err != nil {
			q.logger.Error("failed to store user", "wallet", u.WalletAddress, "error", err)
			results[i] = UserResult{User: u, Error: err.Error()}
			return
		}
		results[i] = UserResult{User: saved}
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// PaymentStatus recomputes the status of user in contract from the chain.
func (q *Query) PaymentStatus(ctx context.Context, contract, user string) (PaymentStatus, error) {
	contract, err := model.ParseAddress(contract)
	if err != nil {
		return PaymentStatus{}, err
	}
	user, err = model.ParseAddress(user)
	if err != nil {
		return PaymentStatus{}, err
	}

	ledger, err := q.ledgerStore.GetByAddress(ctx, contract)
	if err != nil {
		return PaymentStatus{}, fmt.Errorf("failed to get ledger: %w", err)
	}

	refresh, err := q.sync.RefreshStatus(ctx, ledger, user)
	if refresh.Partial && len(refresh.Status.Rounds) > 0 {
		q.logger.Warn("serving partial payment status", "contract", contract, "user", user, "error", err)
		return PaymentStatus{Status: refresh.Status, ReadErrors: refresh.Errors, Partial: true}, nil
	}
	if err != nil {
		if len(refresh.Errors) > 0 {
			err = fmt.Errorf("%w (%w)", err, joinFailures(refresh.Errors))
		}
		return PaymentStatus{}, err
	}

	return PaymentStatus{Status: refresh.Status, ReadErrors: refresh.Errors}, nil
}

// Status returns the stored status of user in contract, re-derived against
// the ledger's latest round.
func (q *Query) Status(ctx context.Context, contract, user string) (model.Status, error) {
	contract, err := model.ParseAddress(contract)
	if err != nil {
		return model.Status{}, err
	}
	user, err = model.ParseAddress(user)
	if err != nil {
		return model.Status{}, err
	}

	status, err := q.statusStore.Get(ctx, user, contract)
	if err != nil {
		return model.Status{}, fmt.Errorf("failed to get status: %w", err)
	}

	ledger, err := q.ledgerStore.GetByAddress(ctx, contract)
	if errors.Is(err, model.ErrNotFound) {
		return status, nil
	}
	if err != nil {
		return model.Status{}, fmt.Errorf("failed to get ledger: %w", err)
	}

	return derive.Project(status, ledger), nil
}

// Overview builds the participant view of wallet from stored data only.
func (q *Query) Overview(ctx context.Context, wallet string) (model.Overview, error) {
	wallet = model.NormalizeAddress(wallet)

	user, err := q.userStore.GetByAddress(ctx, wallet)
	if err != nil {
		return model.Overview{}, fmt.Errorf("failed to get user: %w", err)
	}

	ledgers, err := q.ledgerStore.ListByParticipant(ctx, wallet)
	if err != nil {
		return model.Overview{}, fmt.Errorf("failed to list ledgers: %w", err)
	}

	var addresses []string
	for _, l := range ledgers {
		addresses = append(addresses, l.Participants...)
	}
	participants, err := q.userStore.ListByAddresses(ctx, addresses)
	if err != nil {
		return model.Overview{}, fmt.Errorf("failed to list participants: %w", err)
	}
	names := make(map[string]string, len(participants))
	for _, p := range participants {
		names[p.WalletAddress] = p.Name
	}

	overview := model.Overview{
		WalletAddress: user.WalletAddress,
		User: model.OverviewUser{
			ID:      user.ID,
			Name:    user.Name,
			Balance: user.Balance,
			Points:  user.Points,
		},
		Ledgers: make([]model.LedgerOverview, 0, len(ledgers)),
	}

	for _, l := range ledgers {
		lo, err := q.ledgerOverview(ctx, l, wallet, names)
		if err != nil {
			return model.Overview{}, err
		}
		overview.Ledgers = append(overview.Ledgers, lo)
	}

	return overview, nil
}

func (q *Query) ledgerOverview(ctx context.Context, l model.Ledger, viewer string, names map[string]string) (model.LedgerOverview, error) {
	statuses, err := q.statusStore.ListByContract(ctx, l.ContractAddress)
	if err != nil {
		return model.LedgerOverview{}, fmt.Errorf("failed to list statuses of %s: %w", l.ContractAddress, err)
	}
	byUser := make(map[string]model.Status, len(statuses))
	for _, s := range statuses {
		byUser[s.UserAddress] = s
	}

	periods := 0
	if l.Slots != nil && *l.Slots > 0 {
		periods = *l.Slots
	}

	table := model.TruthTable{
		Periods:      periods,
		Participants: make([]model.ParticipantRow, 0, len(l.Participants)),
	}
	for _, p := range l.Participants {
		name, ok := names[p]
		if !ok {
			name = model.UnknownParticipant
		}

		row := model.ParticipantRow{Name: name, Address: p, Statuses: []model.RoundStatus{}}
		if periods > 0 {
			s, ok := byUser[p]
			if !ok {
				s = model.Status{UserAddress: p, ContractAddress: l.ContractAddress}
			}
			row.Statuses = derive.Statuses(derive.Project(s, l).Rounds)
		}
		table.Participants = append(table.Participants, row)
	}

	return model.LedgerOverview{
		ID:              l.ID,
		ContractAddress: l.ContractAddress,
		Contributions:   byUser[viewer].UserContributions,
		TruthTable:      table,
	}, nil
}

// Snapshot opens an archived registry snapshot.
func (q *Query) Snapshot(ctx context.Context, key string) (io.ReadCloser, error) {
	if q.archive == nil {
		return nil, model.ErrNotFound
	}
	return q.archive.Open(ctx, key)
}

func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
