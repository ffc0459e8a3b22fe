// Package cronjob runs the background maintenance loops: the outbox
// relay and the expired-invite sweep.
package cronjob

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
	"k8s.io/klog/v2"

	"github.com/commune-hq/commune/internal/service"
	"github.com/commune-hq/commune/pkg/events"
)

const relayBatchSize = 100

type Manager struct {
	cron      *cron.Cron
	cronMutex sync.Mutex
	db        *gorm.DB
	publisher *events.Publisher
	members   *service.MembershipService
}

func NewManager(db *gorm.DB, publisher *events.Publisher, members *service.MembershipService) *Manager {
	return &Manager{
		cron:      cron.New(cron.WithLocation(time.Local)),
		db:        db,
		publisher: publisher,
		members:   members,
	}
}

// Start registers the built-in jobs and starts the scheduler.
func (m *Manager) Start() error {
	m.cronMutex.Lock()
	defer m.cronMutex.Unlock()

	if _, err := m.cron.AddFunc("@every 15s", m.relayOutbox); err != nil {
		return err
	}
	if _, err := m.cron.AddFunc("@hourly", m.sweepInvites); err != nil {
		return err
	}
	m.cron.Start()
	klog.Info("cron scheduler started")
	return nil
}

func (m *Manager) Stop() {
	m.cronMutex.Lock()
	defer m.cronMutex.Unlock()
	m.cron.Stop()
}

func (m *Manager) relayOutbox() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.publisher.Relay(ctx, relayBatchSize); err != nil {
		klog.Error("outbox relay: ", err)
	}
}

func (m *Manager) sweepInvites() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	deleted, err := m.members.PruneExpiredInvites(ctx, time.Now().UTC())
	if err != nil {
		klog.Error("invite sweep: ", err)
		return
	}
	if deleted > 0 {
		klog.Infof("invite sweep removed %d expired invites", deleted)
	}
}
