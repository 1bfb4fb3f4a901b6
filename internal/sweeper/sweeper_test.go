package sweeper

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/liveboard/api/internal/database"
	"github.com/liveboard/api/internal/model"
	"github.com/liveboard/api/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

func TestSweepFlipsOnlyStaleParticipants(t *testing.T) {
	db := newTestDB(t)
	presence := store.NewPresenceStore(db, 45*time.Second)

	if err := presence.Heartbeat("session-1", "Jordan", model.RoleStudent); err != nil {
		t.Fatalf("heartbeat fresh: %v", err)
	}
	if err := presence.Heartbeat("session-1", "Casey", model.RoleStudent); err != nil {
		t.Fatalf("heartbeat stale: %v", err)
	}

	stale := time.Now().UTC().Add(-2 * time.Minute)
	if err := db.Model(&model.Participant{}).
		Where("name = ?", "Casey").
		Updates(map[string]interface{}{"updated_at": stale, "status": model.StatusOnline}).Error; err != nil {
		t.Fatalf("age participant: %v", err)
	}

	s := New(db, Config{Staleness: 45 * time.Second, Interval: time.Minute})
	swept, err := s.Sweep()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != 1 {
		t.Errorf("swept = %d, want 1", swept)
	}

	var participants []model.Participant
	if err := db.Order("name").Find(&participants).Error; err != nil {
		t.Fatalf("load participants: %v", err)
	}
	for _, p := range participants {
		want := model.StatusOnline
		if p.Name == "Casey" {
			want = model.StatusOffline
		}
		if p.Status != want {
			t.Errorf("%s status = %s, want %s", p.Name, p.Status, want)
		}
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	s := New(db, Config{Staleness: 45 * time.Second, Interval: time.Minute})

	for i := 0; i < 2; i++ {
		if swept, err := s.Sweep(); err != nil || swept != 0 {
			t.Errorf("sweep %d on empty table = (%d, %v), want (0, nil)", i, swept, err)
		}
	}
}
