package service

import (
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/ports"
)

// lifecycleService owns the ride-request and ride-order state machines.
type lifecycleService struct {
	logger   *logger.Logger
	store    ports.Store
	dispatch ports.DispatchService
	notifier ports.Notifier
	selector ports.CandidateSelector
}

// NewLifecycleService creates the lifecycle engine with the provided dependencies.
func NewLifecycleService(
	logger *logger.Logger,
	store ports.Store,
	dispatch ports.DispatchService,
	notifier ports.Notifier,
	selector ports.CandidateSelector,
) ports.LifecycleService {
	return &lifecycleService{
		logger:   logger,
		store:    store,
		dispatch: dispatch,
		notifier: notifier,
		selector: selector,
	}
}
