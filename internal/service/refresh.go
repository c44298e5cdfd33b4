package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dtroode/kurisync/internal/derive"
	"github.com/dtroode/kurisync/internal/model"
)

// LedgerRefresh is a ledger after an on-chain read. Errors lists the reads
// that failed; their fields kept the previously stored value.
type LedgerRefresh struct {
	Ledger model.Ledger
	Errors []model.EntityFailure
}

// StatusRefresh is a status after an on-chain read. Errors lists the reads
// that failed, whether or not the computation could recover from them.
type StatusRefresh struct {
	Status model.Status
	Errors []model.EntityFailure
	// Partial marks a best-effort status that lacks some rounds and was not
	// stored.
	Partial bool
}

// Err joins the read errors.
func (r LedgerRefresh) Err() error {
	return joinFailures(r.Errors)
}

func joinFailures(failures []model.EntityFailure) error {
	errs := make([]error, 0, len(failures))
	for _, f := range failures {
		errs = append(errs, fmt.Errorf("%s: %s", f.Key, f.Error))
	}
	return errors.Join(errs...)
}

// failures is a concurrency-safe list of read errors.
type failures struct {
	mu   sync.Mutex
	list []model.EntityFailure
}

func (f *failures) add(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = append(f.list, model.EntityFailure{Key: key, Error: err.Error()})
}

func (f *failures) sorted() []model.EntityFailure {
	f.mu.Lock()
	defer f.mu.Unlock()
	slices.SortFunc(f.list, func(a, b model.EntityFailure) int {
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		}
		return 0
	})
	return slices.Clone(f.list)
}

// RefreshLedger reads the slot count, the current round and the participants
// of a ledger independently and upserts whatever was read.
func (s *Sync) RefreshLedger(ctx context.Context, ref model.LedgerRef) (LedgerRefresh, error) {
	contract := model.NormalizeAddress(ref.ContractAddress)
	log := s.logger.With("contract", contract)

	previous, err := s.ledgerStore.GetByAddress(ctx, contract)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return LedgerRefresh{}, fmt.Errorf("failed to load ledger: %w", err)
	}

	patch := model.LedgerPatch{ContractAddress: contract}
	if ref.ID != 0 {
		id := ref.ID
		patch.ID = &id
	}

	var fails failures
	var mu sync.Mutex
	var g errgroup.Group
	g.Go(func() error {
		slots, err := s.source.SlotCount(ctx, contract)
		switch {
		case err != nil:
			fails.add("slots", err)
		case slots < 1:
			log.Warn("ignoring non-positive slot count", "slots", slots)
		default:
			mu.Lock()
			patch.Slots = &slots
			mu.Unlock()
		}
		return nil
	})
	g.Go(func() error {
		round, err := s.source.CurrentRound(ctx, contract)
		if err != nil {
			fails.add("currentRound", err)
			return nil
		}
		mu.Lock()
		patch.CurrentRound = &round
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		participants, err := s.source.Participants(ctx, contract)
		if err != nil {
			fails.add("participants", err)
			return nil
		}
		mu.Lock()
		patch.Participants = model.NormalizeAddresses(participants)
		if patch.Participants == nil {
			patch.Participants = []string{}
		}
		mu.Unlock()
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return LedgerRefresh{}, err
	}

	s.checkRound(ctx, contract, previous.CurrentRound, patch.CurrentRound)

	saved, err := retryStore(ctx, s.cfg.Store, s.logger, "upsert ledger", func(ctx context.Context) (model.Ledger, error) {
		return s.ledgerStore.Upsert(ctx, patch)
	})
	if err != nil {
		return LedgerRefresh{Errors: fails.sorted()}, fmt.Errorf("failed to store ledger: %w", err)
	}

	result := LedgerRefresh{Ledger: saved, Errors: fails.sorted()}
	for _, f := range result.Errors {
		log.Warn("ledger read failed, keeping stored value", "field", f.Key, "error", f.Error)
	}
	return result, nil
}

// checkRound compares a fresh current round with the stored one. A lower
// value is still written: the chain is the source of truth.
func (s *Sync) checkRound(ctx context.Context, contract string, previous, next *int) {
	if previous == nil || next == nil || *previous == *next {
		return
	}

	if *next < *previous {
		s.logger.Warn("ledger current round went backwards", "contract", contract, "stored", *previous, "read", *next)
		if s.metrics != nil {
			s.metrics.RoundRegressions.Inc()
		}
		return
	}

	s.publish(ctx, model.SubjectLedgerRoundAdvance, model.RoundAdvancedEvent{
		ContractAddress: contract,
		From:            *previous,
		To:              *next,
	})
}

// RefreshStatus reads the per-round flags and the aggregates of user in
// ledger, derives the round statuses and upserts the result. Rounds that
// could not be read fall back to the stored record, and rounds after the
// current one read as unset since they are pending either way. A round
// still missing fails the computation with model.ErrMissingRound; the
// returned refresh then carries the rounds that could be derived.
func (s *Sync) RefreshStatus(ctx context.Context, ledger model.Ledger, user string) (StatusRefresh, error) {
	if ledger.Slots == nil || *ledger.Slots < 1 {
		return StatusRefresh{}, model.ErrSlotsUnknown
	}
	if ledger.CurrentRound == nil {
		return StatusRefresh{}, model.ErrRoundUnknown
	}

	contract := model.NormalizeAddress(ledger.ContractAddress)
	user = model.NormalizeAddress(user)
	slots := *ledger.Slots
	log := s.logger.With("contract", contract, "user", user)

	previous, err := retryStore(ctx, s.cfg.Store, s.logger, "get status", func(ctx context.Context) (model.Status, error) {
		return s.statusStore.Get(ctx, user, contract)
	})
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return StatusRefresh{}, fmt.Errorf("failed to load status: %w", err)
	}
	stored := make(map[int]model.RoundFlags, len(previous.Rounds))
	for _, r := range previous.Rounds {
		stored[r.Round] = r.RoundFlags
	}

	var fails failures
	flags := make([]*model.RoundFlags, slots)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for round := 1; round <= slots; round++ {
		round := round
		g.Go(func() error {
			f, err := s.readRound(gctx, contract, user, round)
			if err != nil {
				fails.add("round "+strconv.Itoa(round), err)
				prev, ok := stored[round]
				switch {
				case ok:
					f = prev
				case round > *ledger.CurrentRound:
					f = model.RoundFlags{Round: round}
				default:
					return nil
				}
			}
			flags[round-1] = &f
			return nil
		})
	}

	var (
		wonRound      *int
		contributions *int64
		remoteHasWon  *bool
	)
	g.Go(func() error {
		v, err := s.source.WonRound(gctx, contract, user)
		if err != nil {
			fails.add("participantWonRound", err)
			return nil
		}
		wonRound = &v
		return nil
	})
	g.Go(func() error {
		v, err := s.source.HasWon(gctx, contract, user)
		if err != nil {
			fails.add("hasWon", err)
			return nil
		}
		remoteHasWon = &v
		return nil
	})
	g.Go(func() error {
		v, err := s.source.TotalContributions(gctx, contract, user)
		if err != nil {
			fails.add("userContributions", err)
			return nil
		}
		contributions = &v
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return StatusRefresh{}, err
	}

	if wonRound != nil && remoteHasWon != nil && (*wonRound > 0) != *remoteHasWon {
		log.Warn("ledger reports inconsistent win state", "won_round", *wonRound, "has_won", *remoteHasWon)
	}

	in := derive.Input{
		UserAddress:       user,
		ContractAddress:   contract,
		Slots:             slots,
		CurrentRound:      *ledger.CurrentRound,
		WonRound:          wonRound,
		UserContributions: contributions,
		Now:               s.now(),
		StoredWonRound:    previous.ParticipantWonRound,
	}
	for _, f := range flags {
		if f != nil {
			in.Flags = append(in.Flags, *f)
		}
	}

	readErrors := fails.sorted()
	patch, err := derive.Compute(in)
	if errors.Is(err, model.ErrMissingRound) {
		return StatusRefresh{Status: bestEffort(previous, in), Errors: readErrors, Partial: true}, err
	}
	if err != nil {
		return StatusRefresh{Errors: readErrors}, err
	}

	saved, err := retryStore(ctx, s.cfg.Store, s.logger, "upsert status", func(ctx context.Context) (model.Status, error) {
		return s.statusStore.Upsert(ctx, patch)
	})
	if err != nil {
		return StatusRefresh{Errors: readErrors}, fmt.Errorf("failed to store status: %w", err)
	}

	for _, f := range readErrors {
		log.Warn("status read failed, using stored value", "field", f.Key, "error", f.Error)
	}

	before := derive.Statuses(previous.Rounds)
	after := derive.Statuses(saved.Rounds)
	if !slices.Equal(before, after) || previous.HasWon != saved.HasWon {
		s.publish(ctx, model.SubjectStatusUpdated, model.StatusUpdatedEvent{
			UserAddress:     user,
			ContractAddress: contract,
			Statuses:        after,
			HasWon:          saved.HasWon,
		})
	}

	return StatusRefresh{Status: saved, Errors: readErrors}, nil
}

// bestEffort is the unstored status built from the rounds that could be
// derived, with stored aggregates standing in for unread ones.
func bestEffort(previous model.Status, in derive.Input) model.Status {
	won := in.EffectiveWonRound()
	status := model.Status{
		UserAddress:         in.UserAddress,
		ContractAddress:     in.ContractAddress,
		Rounds:              derive.Available(in.Slots, in.CurrentRound, in.Flags, won),
		ParticipantWonRound: won,
		HasWon:              won > 0,
		UserContributions:   previous.UserContributions,
		LastUpdated:         previous.LastUpdated,
	}
	if in.UserContributions != nil {
		status.UserContributions = *in.UserContributions
	}
	return status
}

func (s *Sync) readRound(ctx context.Context, contract, user string, round int) (model.RoundFlags, error) {
	paid, err := s.source.HasPaidRound(ctx, contract, user, round)
	if err != nil {
		return model.RoundFlags{}, fmt.Errorf("hasPaidRound: %w", err)
	}
	bid, err := s.source.HasBidRound(ctx, contract, user, round)
	if err != nil {
		return model.RoundFlags{}, fmt.Errorf("hasBidRound: %w", err)
	}
	return model.RoundFlags{Round: round, HasPaid: paid, HasBid: bid}, nil
}

func (s *Sync) publish(ctx context.Context, subject string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, subject, payload); err != nil {
		s.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}
