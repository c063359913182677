// Package bank tracks withdrawal requests members make to the faction bankers.
package bank

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"brotherowl/internal/common"
	"brotherowl/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Status string

const (
	Pending   Status = "pending"
	Fulfilled Status = "fulfilled"
	Cancelled Status = "cancelled"
)

// Resolved requests are kept this long
const Retention = 7 * 24 * time.Hour

const (
	ButtonFulfil = "bank_fulfil:"
	ButtonCancel = "bank_cancel:"
)

var (
	ErrNotFound        = errors.New("bank request not found")
	ErrAlreadyResolved = errors.New("bank request already resolved")
	ErrNotRequester    = errors.New("only the requester can cancel this request")
	ErrInvalidAmount   = errors.New("amount must be positive")
)

type Request struct {
	ID          string    `json:"id"`
	GuildID     string    `json:"guild_id"`
	RequesterID string    `json:"requester_id"`
	TornID      int       `json:"torn_id"`
	Amount      int64     `json:"amount"`
	Status      Status    `json:"status"`
	FulfilledBy string    `json:"fulfilled_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ResolvedAt  time.Time `json:"resolved_at,omitempty"`
	Notified    bool      `json:"notified"`
	MessageID   string    `json:"message_id,omitempty"`
}

type Service struct {
	mu    sync.Mutex
	repo  storage.Repository[Request]
	clock common.Clock
}

func NewService(repo storage.Repository[Request], clock common.Clock) *Service {
	if clock == nil {
		clock = common.SystemClock{}
	}
	return &Service{repo: repo, clock: clock}
}

func (s *Service) Create(guildID string, requesterID string, tornID int, amount int64) (Request, error) {
	if amount <= 0 {
		return Request{}, ErrInvalidAmount
	}
	request := Request{
		ID:          uuid.NewString(),
		GuildID:     guildID,
		RequesterID: requesterID,
		TornID:      tornID,
		Amount:      amount,
		Status:      Pending,
		CreatedAt:   s.clock.Now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Set(request.ID, request); err != nil {
		return Request{}, fmt.Errorf("failed to save bank request: %w", err)
	}
	log.Info().Str("request", request.ID).Str("guild", guildID).Int64("amount", amount).Msg("Bank request created")
	return request, nil
}

func (s *Service) Get(id string) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

func (s *Service) Fulfill(id string, bankerID string) (Request, error) {
	return s.resolve(id, func(r *Request) error {
		r.Status = Fulfilled
		r.FulfilledBy = bankerID
		return nil
	})
}

// Cancel is allowed to the requester, or to anyone when force is set (bankers)
func (s *Service) Cancel(id string, userID string, force bool) (Request, error) {
	return s.resolve(id, func(r *Request) error {
		if !force && r.RequesterID != userID {
			return ErrNotRequester
		}
		r.Status = Cancelled
		return nil
	})
}

// Records the message announcing the request so buttons can be updated later
func (s *Service) MarkNotified(id string, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, err := s.get(id)
	if err != nil {
		return err
	}
	request.Notified = true
	request.MessageID = messageID
	return s.repo.Set(id, request)
}

// Pending requests of a guild, oldest first
func (s *Service) Pending(guildID string) ([]Request, error) {
	s.mu.Lock()
	all, err := s.repo.List()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	pending := []Request{}
	for _, request := range all {
		if request.Status == Pending && request.GuildID == guildID {
			pending = append(pending, request)
		}
	}
	slices.SortFunc(pending, func(a, b Request) int {
		return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	})
	return pending, nil
}

// CollectGarbage drops resolved requests older than the retention and returns how many
func (s *Service) CollectGarbage() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.repo.List()
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	removed := 0
	for id, request := range all {
		if request.Status == Pending || now.Sub(request.ResolvedAt) < Retention {
			continue
		}
		if err := s.repo.Delete(id); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("Old bank requests removed")
	}
	return removed, nil
}

func (s *Service) resolve(id string, transition func(*Request) error) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, err := s.get(id)
	if err != nil {
		return Request{}, err
	}
	if request.Status != Pending {
		return request, ErrAlreadyResolved
	}
	if err := transition(&request); err != nil {
		return request, err
	}
	request.ResolvedAt = s.clock.Now()
	if err := s.repo.Set(id, request); err != nil {
		return Request{}, fmt.Errorf("failed to save bank request: %w", err)
	}
	log.Info().Str("request", id).Str("status", string(request.Status)).Msg("Bank request resolved")
	return request, nil
}

func (s *Service) get(id string) (Request, error) {
	request, err := s.repo.Get(id)
	if errors.Is(err, storage.ErrNotFound) {
		return Request{}, ErrNotFound
	}
	return request, err
}
