package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/huangang/studyroom/internal/models"
	"gorm.io/gorm"
)

const schedulerLockTTL = 10 * time.Minute

var lockHolder = func() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}()

// acquireSchedulerLock claims the run of job for the lock window containing
// now. It returns false when another instance sharing the database already
// holds that window.
func acquireSchedulerLock(ctx context.Context, db *gorm.DB, job string, now time.Time) (bool, error) {
	db = db.WithContext(ctx)

	if err := db.Where("expires_at < ?", now).Delete(&models.SchedulerLock{}).Error; err != nil {
		return false, persistenceError("expire scheduler locks", err)
	}

	lock := models.SchedulerLock{
		LockName:  job,
		LockKey:   now.UTC().Truncate(schedulerLockTTL).Format(time.RFC3339),
		LockedBy:  lockHolder,
		LockedAt:  now,
		ExpiresAt: now.Add(schedulerLockTTL),
	}
	if err := db.Create(&lock).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, persistenceError("acquire scheduler lock", err)
	}
	return true, nil
}
