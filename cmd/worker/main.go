package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"campus/internal/attendance"
	"campus/internal/config"
	"campus/internal/queue"
	"campus/internal/roster"
	"campus/internal/store"
	"campus/pkg/logger"
)

// Worker consumes repair jobs and runs a periodic full sweep: orphaned
// students are removed, rosters rebuilt, and session back-references patched.
func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "campus:repair")
	}

	rosterRepo := roster.NewRepository(db.Client)
	attendanceRepo := attendance.NewRepository(db.Client)
	repairer := roster.NewRepairer(rosterRepo, log)
	sessions := attendance.NewService(attendanceRepo, rosterRepo, log)

	fullSweep := func() {
		if rep, err := repairer.Run(ctx); err != nil {
			log.Error("orphan repair failed", zap.Error(err))
		} else if rep.StudentsRemoved > 0 {
			log.Info("orphans removed", zap.Int64("students", rep.StudentsRemoved))
		}

		ids, err := attendanceRepo.ListSessionIDs(ctx)
		if err != nil {
			log.Error("session list failed", zap.Error(err))
			return
		}
		for _, id := range ids {
			if _, err := sessions.RepairLinkage(ctx, id); err != nil {
				log.Error("linkage repair failed", zap.String("session", id), zap.Error(err))
			}
		}
	}

	ticker := time.NewTicker(cfg.RepairInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				fullSweep()
			case <-ctx.Done():
				return
			}
		}
	}()

	jobs, err := q.Consume(ctx)
	if err != nil {
		log.Fatal("queue consume init failed", zap.Error(err))
	}

	log.Info("worker started, waiting for jobs")
	for job := range jobs {
		switch job.Type {
		case queue.JobRepairOrphans:
			if rep, err := repairer.Run(ctx); err != nil {
				log.Error("orphan repair failed", zap.Error(err))
			} else {
				log.Info("repair job done",
					zap.Int64("students_removed", rep.StudentsRemoved),
					zap.Int64("rosters_rebuilt", rep.RostersRebuilt))
			}
		case queue.JobRepairLinkage:
			if job.SessionID == "" {
				continue
			}
			if patched, err := sessions.RepairLinkage(ctx, job.SessionID); err != nil {
				log.Error("linkage repair failed", zap.String("session", job.SessionID), zap.Error(err))
			} else if patched > 0 {
				log.Info("linkage job done", zap.String("session", job.SessionID), zap.Int("patched", patched))
			}
		default:
			log.Warn("unknown job type", zap.String("type", job.Type))
		}
	}

	log.Info("worker stopped")
}
