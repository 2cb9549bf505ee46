package service

import (
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/ports"
)

const (
	// defaultSearchRadiusKM bounds candidate selection around the pickup.
	defaultSearchRadiusKM = 5.0
	// defaultMaxCandidates caps the offer fan-out per request.
	defaultMaxCandidates = 10
)

// dispatchService broadcasts offers and arbitrates concurrent driver
// responses. All races are decided by commit-time preconditions in the
// store, never by in-memory locks.
type dispatchService struct {
	logger        *logger.Logger
	store         ports.Store
	notifier      ports.Notifier
	selector      ports.CandidateSelector
	searchRadius  float64
	maxCandidates int
}

// NewDispatchService creates dispatch arbitration with the provided
// dependencies. A zero radius or candidate cap falls back to the defaults.
func NewDispatchService(
	logger *logger.Logger,
	store ports.Store,
	notifier ports.Notifier,
	selector ports.CandidateSelector,
	searchRadiusKM float64,
	maxCandidates int,
) ports.DispatchService {
	if searchRadiusKM <= 0 {
		searchRadiusKM = defaultSearchRadiusKM
	}
	if maxCandidates <= 0 {
		maxCandidates = defaultMaxCandidates
	}
	return &dispatchService{
		logger:        logger,
		store:         store,
		notifier:      notifier,
		selector:      selector,
		searchRadius:  searchRadiusKM,
		maxCandidates: maxCandidates,
	}
}
