package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/shopledger/internal/config"
	"github.com/mamadbah2/shopledger/internal/domain/models"
	"github.com/mamadbah2/shopledger/internal/service/reporting"
	"github.com/mamadbah2/shopledger/internal/service/whatsapp"
)

const jobTimeout = 2 * time.Minute

// ReportStore persists daily reports.
type ReportStore interface {
	SaveDailyReport(ctx context.Context, report models.DailyReport) error
}

// ReportMirror copies daily reports to an external sheet.
type ReportMirror interface {
	AppendDailyReport(ctx context.Context, report models.DailyReport) (bool, error)
}

// Scheduler manages scheduled tasks. Store, mirror and messenger are
// optional; missing ones are skipped.
type Scheduler struct {
	cron         *cron.Cron
	reportingSvc *reporting.Service
	store        ReportStore
	mirror       ReportMirror
	messagingSvc whatsapp.MessagingService
	cfg          config.Config
	logger       *zap.Logger
}

// NewScheduler creates a new scheduler running in the reporting time zone.
func NewScheduler(cfg config.Config, reportingSvc *reporting.Service, store ReportStore, mirror ReportMirror, messagingSvc whatsapp.MessagingService, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	location, err := cfg.Reporting.Location()
	if err != nil {
		return nil, fmt.Errorf("load report timezone: %w", err)
	}

	return &Scheduler{
		cron:         cron.New(cron.WithLocation(location)),
		reportingSvc: reportingSvc,
		store:        store,
		mirror:       mirror,
		messagingSvc: messagingSvc,
		cfg:          cfg,
		logger:       logger,
	}, nil
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		zap.String("daily_report", s.cfg.Reporting.CronSchedule),
		zap.String("low_stock", s.cfg.Reporting.LowStockCronSchedule),
	)

	if _, err := s.cron.AddFunc(s.cfg.Reporting.CronSchedule, s.sendDailyReport); err != nil {
		return fmt.Errorf("schedule daily report: %w", err)
	}
	if s.cfg.Reporting.LowStockCronSchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.Reporting.LowStockCronSchedule, s.sendLowStockAlert); err != nil {
			return fmt.Errorf("schedule low stock alert: %w", err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sendDailyReport() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	s.RunDailyReport(ctx)
}

func (s *Scheduler) sendLowStockAlert() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	s.RunLowStockAlert(ctx)
}

// RunDailyReport builds today's report, stores it, mirrors it and sends it
// to the manager. A failing step is logged and does not stop the others.
func (s *Scheduler) RunDailyReport(ctx context.Context) {
	date := s.reportingSvc.Today()
	log := s.logger.With(zap.String("date", date))
	log.Info("generating daily report")

	report := s.reportingSvc.DailyReport(date)

	if s.store != nil {
		if err := s.store.SaveDailyReport(ctx, report); err != nil {
			log.Error("failed to save daily report", zap.Error(err))
		}
	}

	if s.mirror != nil {
		written, err := s.mirror.AppendDailyReport(ctx, report)
		switch {
		case err != nil:
			log.Error("failed to mirror daily report", zap.Error(err))
		case !written:
			log.Info("daily report already mirrored")
		}
	}

	s.notify(ctx, log, s.reportingSvc.DailyText(date))
}

// RunLowStockAlert messages the manager when any item is low.
func (s *Scheduler) RunLowStockAlert(ctx context.Context) {
	text := s.reportingSvc.LowStockText()
	if text == "" {
		s.logger.Debug("no low stock items")
		return
	}
	s.notify(ctx, s.logger, text)
}

func (s *Scheduler) notify(ctx context.Context, log *zap.Logger, text string) {
	if s.messagingSvc == nil || s.cfg.WhatsApp.ManagerID == "" {
		return
	}

	req := models.OutboundMessageRequest{
		To:      s.cfg.WhatsApp.ManagerID,
		Message: text,
	}

	if err := s.messagingSvc.SendOutbound(ctx, req); err != nil {
		log.Error("failed to send scheduled message", zap.Error(err))
	} else {
		log.Info("scheduled message sent successfully")
	}
}
