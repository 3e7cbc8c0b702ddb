package service

import (
	"context"
	"sort"
	"time"

	"github.com/kursadbilgin/dissolution-engine/internal/domain"
	"github.com/kursadbilgin/dissolution-engine/internal/queue"
	"github.com/kursadbilgin/dissolution-engine/internal/repository"
)

// memStore is an in-memory stand-in for the relational store. Both batch
// repositories share it so joins behave like the gorm implementation.
type memStore struct {
	businesses  map[string]domain.Business
	batches     []domain.Batch
	processings []domain.BatchProcessing
	updates     int

	findEligibleErr error
	getBusinessErr  error
	createErr       error
	existsErr       error
	findMatchingErr error
	updateErr       error
	updateStatusErr error
}

func newMemStore(businesses ...domain.Business) *memStore {
	s := &memStore{businesses: make(map[string]domain.Business, len(businesses))}
	for _, b := range businesses {
		s.businesses[b.Identifier] = b
	}
	return s
}

func (s *memStore) batchRepo() repository.BatchRepository { return memBatchRepo{s} }

func (s *memStore) processingRepo() repository.BatchProcessingRepository {
	return memProcessingRepo{s}
}

func (s *memStore) GetByIdentifier(ctx context.Context, identifier string) (*domain.Business, error) {
	if s.getBusinessErr != nil {
		return nil, s.getBusinessErr
	}
	b, ok := s.businesses[identifier]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &b, nil
}

func (s *memStore) FindEligible(ctx context.Context, asOf time.Time, limit int) ([]domain.Business, error) {
	if s.findEligibleErr != nil {
		return nil, s.findEligibleErr
	}
	if limit <= 0 {
		return nil, nil
	}

	eligible := make([]domain.Business, 0)
	for _, b := range s.businesses {
		if b.IsOverdue(asOf) && !s.inActiveBatch(b.ID) {
			eligible = append(eligible, b)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Identifier < eligible[j].Identifier })
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}
	return eligible, nil
}

func (s *memStore) inActiveBatch(businessID string) bool {
	for _, p := range s.processings {
		if p.BusinessID != businessID {
			continue
		}
		batch, ok := s.batch(p.BatchID)
		if !ok || batch.BatchType != domain.BatchTypeInvoluntaryDissolution {
			continue
		}
		for _, status := range domain.ActiveProcessingStatuses {
			if p.Status == status {
				return true
			}
		}
	}
	return false
}

func (s *memStore) batch(id string) (domain.Batch, bool) {
	for _, b := range s.batches {
		if b.ID == id {
			return b, true
		}
	}
	return domain.Batch{}, false
}

type memBatchRepo struct{ *memStore }

func (r memBatchRepo) CreateWithProcessings(ctx context.Context, b *domain.Batch, processings []*domain.BatchProcessing) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.batches = append(r.batches, *b)
	for _, p := range processings {
		r.processings = append(r.processings, *p)
	}
	return nil
}

func (r memBatchRepo) ExistsStartedBetween(ctx context.Context, batchType domain.BatchType, from, to time.Time) (bool, error) {
	if r.existsErr != nil {
		return false, r.existsErr
	}
	for _, b := range r.batches {
		if b.BatchType == batchType && !b.StartDate.Before(from) && b.StartDate.Before(to) {
			return true, nil
		}
	}
	return false, nil
}

func (r memBatchRepo) FindFinished(ctx context.Context, batchType domain.BatchType) ([]domain.Batch, error) {
	finished := make([]domain.Batch, 0)
	for _, b := range r.batches {
		if b.BatchType != batchType || b.Status != domain.BatchStatusProcessing {
			continue
		}
		pending := false
		for _, p := range r.processings {
			if p.BatchID == b.ID && !p.Status.IsTerminal() {
				pending = true
				break
			}
		}
		if !pending {
			finished = append(finished, b)
		}
	}
	return finished, nil
}

func (r memBatchRepo) UpdateStatus(ctx context.Context, id string, status domain.BatchStatus, endDate *time.Time) error {
	if r.updateStatusErr != nil {
		return r.updateStatusErr
	}
	for i := range r.batches {
		if r.batches[i].ID == id {
			r.batches[i].Status = status
			r.batches[i].EndDate = endDate
			return nil
		}
	}
	return domain.ErrNotFound
}

type memProcessingRepo struct{ *memStore }

func (r memProcessingRepo) FindMatching(ctx context.Context, criteria domain.ProcessingCriteria) ([]domain.BatchProcessing, error) {
	if r.findMatchingErr != nil {
		return nil, r.findMatchingErr
	}
	found := make([]domain.BatchProcessing, 0)
	for _, p := range r.processings {
		b, ok := r.batch(p.BatchID)
		if ok && criteria.Matches(b, p) {
			found = append(found, p)
		}
	}
	return found, nil
}

func (r memProcessingRepo) Update(ctx context.Context, p *domain.BatchProcessing) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	for i := range r.processings {
		if r.processings[i].ID == p.ID {
			r.processings[i] = *p
			r.updates++
			return nil
		}
	}
	return domain.ErrNotFound
}

type fakePublisher struct {
	publishFn func(ctx context.Context, msg queue.NoticeMessage) error
	closeFn   func() error
}

func (f *fakePublisher) Publish(ctx context.Context, msg queue.NoticeMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

// fakeOutbox keeps parked notices by key and returns them in Key order.
type fakeOutbox struct {
	parked     map[string]queue.NoticeMessage
	parkErr    error
	pendingErr error
}

func newFakeOutbox(msgs ...queue.NoticeMessage) *fakeOutbox {
	o := &fakeOutbox{parked: make(map[string]queue.NoticeMessage)}
	for _, msg := range msgs {
		o.parked[msg.Key()] = msg
	}
	return o
}

func (o *fakeOutbox) Park(ctx context.Context, msg queue.NoticeMessage) error {
	if o.parkErr != nil {
		return o.parkErr
	}
	o.parked[msg.Key()] = msg
	return nil
}

func (o *fakeOutbox) Pending(ctx context.Context) ([]queue.NoticeMessage, error) {
	if o.pendingErr != nil {
		return nil, o.pendingErr
	}
	pending := make([]queue.NoticeMessage, 0, len(o.parked))
	for _, msg := range o.parked {
		pending = append(pending, msg)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Key() < pending[j].Key() })
	return pending, nil
}

func (o *fakeOutbox) Remove(ctx context.Context, msg queue.NoticeMessage) error {
	delete(o.parked, msg.Key())
	return nil
}

type fakeConfigurationRepo struct {
	values map[string]string
	err    error
}

func (f *fakeConfigurationRepo) FindByName(ctx context.Context, name string) (*domain.Configuration, error) {
	if f.err != nil {
		return nil, f.err
	}
	val, ok := f.values[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.Configuration{Name: name, Val: val}, nil
}
