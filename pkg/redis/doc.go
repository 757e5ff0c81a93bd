// Package redis connects to Redis through go-redis and provides the
// distributed Locker used by the scheduler.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	locker := redis.NewLocker(client, cfg.KeyPrefix, log)
//	sched := scheduler.New(scheduler.WithLocker(locker, 30*time.Minute))
package redis
