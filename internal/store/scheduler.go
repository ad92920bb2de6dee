package store

import (
	"sync"
	"time"

	"github.com/roylee0704/gron"

	"pickd/internal/providers"
	"pickd/internal/store/interfaces"
	"pickd/internal/structures"
)

// Scheduler runs the two background jobs: periodic snapshot persistence
// and the rollover sweep that keeps idle recurring events current.
type Scheduler struct {
	config      *structures.Config
	logger      providers.Logger
	sweeper     interfaces.SweeperInterface
	fileManager *FileManager
	metrics     providers.MetricsProviderInterface
	cron        *gron.Cron
	opsMu       sync.Mutex
}

func (s *Scheduler) Init() {
	s.cron = gron.New()

	s.cron.AddFunc(gron.Every(s.config.Persistence.SaveInterval), func() {
		if err := s.Persist(); err != nil {
			return
		}
		s.logger.Infof(providers.TypeApp, "Persisted data to file %s", s.config.Persistence.FilePath)
	})

	if s.config.Picker.SweepInterval > 0 {
		s.cron.AddFunc(gron.Every(s.config.Picker.SweepInterval), s.sweep)
	}

	s.cron.Start()
}

func (s *Scheduler) sweep() {
	if n := s.sweeper.SweepRollovers(); n > 0 {
		s.metrics.IncRollovers(n)
		s.logger.Infof(providers.TypeApp, "Rollover sweep advanced %d event(s)", n)
	}
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Scheduler) Restore() error {
	return s.fileManager.LoadFromFile(s.config.Persistence.FilePath)
}

func (s *Scheduler) Persist() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	start := time.Now()
	err := s.fileManager.SaveToFile(s.config.Persistence.FilePath)
	if err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while persisting data: %s", err)
		return err
	}
	s.metrics.ObservePersistenceDuration(time.Since(start))
	return nil
}

func NewScheduler(config *structures.Config, logger providers.Logger, sweeper interfaces.SweeperInterface, fileManager *FileManager, metrics providers.MetricsProviderInterface) interfaces.SchedulerInterface {
	return &Scheduler{
		config:      config,
		logger:      logger,
		sweeper:     sweeper,
		fileManager: fileManager,
		metrics:     metrics,
	}
}
