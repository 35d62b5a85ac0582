package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"readingclub/internal/cache"
	"readingclub/internal/config"
	"readingclub/internal/database"
	"readingclub/internal/handler"
	"readingclub/internal/i18n"
	"readingclub/internal/push"
	"readingclub/internal/queue"
	rdb "readingclub/internal/redis"
	"readingclub/internal/repository"
	"readingclub/internal/service"
	"readingclub/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func Run() error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	repos := newRepositories(db)

	// 3. Optional Redis: event stream, delivery workers, live stream
	var (
		publisher queue.Publisher
		streamH   *handler.StreamHandler
		manager   *worker.Manager
	)
	if cfg.RedisURL != "" {
		client, err := rdb.NewClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := client.Ping(ctx); err != nil {
			return err
		}

		publisher = queue.NewPublisher(client.Client, cfg.StreamMaxLen)
		streamH = handler.NewStreamHandler(client)

		sender, err := newPushSender(ctx, cfg)
		if err != nil {
			return err
		}
		h := worker.NewHandler(repos.notifications, client)
		h.SetPush(repos.deviceTokens, sender)
		h.SetDeliveryLog(cache.NewDeliveryLog(client.Client))

		mcfg := worker.DefaultManagerConfig()
		mcfg.WorkerCount = cfg.WorkerCount
		mcfg.MaxAttempts = cfg.DeliveryMaxAttempts
		if cfg.WorkerCount > 0 {
			manager = worker.NewManager(queue.NewConsumer(client.Client), h, mcfg)
			if err := manager.Start(ctx); err != nil {
				return fmt.Errorf("failed to start workers: %w", err)
			}
			defer manager.Stop()
		}
	} else {
		log.Println("REDIS_URL not set: notifications are stored but not delivered live")
	}

	// 4. Services and handlers
	txr := database.NewTransactor(db)
	notifications := service.NewNotificationService(repos.notifications, publisher)
	follows := service.NewFollowService(repos.users, repos.follows, repos.requests, notifications, txr)
	content := service.NewContentService(repos.users, repos.follows, repos.threads, repos.comments, repos.likes, repos.notifications, notifications, txr)
	moderation := service.NewModerationService(repos.users, content, notifications, txr)
	admin := service.NewAdminService(repos.users, repos.stats, txr)
	likes := service.NewLikeService(repos.likes, repos.users, content, notifications, txr)
	privacy := service.NewPrivacyService(repos.users, repos.follows, repos.requests, repos.progress)
	devices := service.NewDeviceService(repos.deviceTokens)
	accounts := service.NewAccountService(service.AccountRepositories{
		Users:           repos.users,
		Follows:         repos.follows,
		FollowRequests:  repos.requests,
		Threads:         repos.threads,
		Comments:        repos.comments,
		Likes:           repos.likes,
		Notifications:   repos.notifications,
		ReadingProgress: repos.progress,
		DeviceTokens:    repos.deviceTokens,
	}, txr, nil)

	router := NewRouter(RouterConfig{
		UserHandler:         handler.NewUserHandler(privacy, accounts),
		FollowHandler:       handler.NewFollowHandler(follows, privacy),
		NotificationHandler: handler.NewNotificationHandler(notifications, devices),
		ModerationHandler:   handler.NewModerationHandler(moderation),
		AdminHandler:        handler.NewAdminHandler(admin),
		LikeHandler:         handler.NewLikeHandler(likes),
		ContentHandler:      handler.NewContentHandler(content, privacy),
		StreamHandler:       streamH,
		JWTSecret:           cfg.JWTSecret,
		DefaultLocale:       i18n.Parse(cfg.DefaultLocale),
	})

	// 5. Serve until interrupted
	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type repositories struct {
	users         repository.UserRepository
	follows       repository.FollowRepository
	requests      repository.FollowRequestRepository
	notifications repository.NotificationRepository
	likes         repository.LikeRepository
	threads       repository.ThreadRepository
	comments      repository.CommentRepository
	progress      repository.ReadingProgressRepository
	deviceTokens  repository.DeviceTokenRepository
	stats         repository.StatsRepository
}

func newRepositories(db *sqlx.DB) repositories {
	return repositories{
		users:         repository.NewUserRepository(db),
		follows:       repository.NewFollowRepository(db),
		requests:      repository.NewFollowRequestRepository(db),
		notifications: repository.NewNotificationRepository(db),
		likes:         repository.NewLikeRepository(db),
		threads:       repository.NewThreadRepository(db),
		comments:      repository.NewCommentRepository(db),
		progress:      repository.NewReadingProgressRepository(db),
		deviceTokens:  repository.NewDeviceTokenRepository(db),
		stats:         repository.NewStatsRepository(db),
	}
}

func newPushSender(ctx context.Context, cfg *config.Config) (push.Sender, error) {
	switch cfg.PushProvider {
	case "expo":
		log.Println("Push delivery via Expo")
		return push.NewExpoSender(cfg.ExpoPushURL), nil
	case "fcm":
		sender, err := push.NewFCMSender(ctx, cfg.FCMProjectID, cfg.FCMClientEmail, cfg.FCMPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("init fcm: %w", err)
		}
		log.Println("Push delivery via FCM")
		return sender, nil
	default:
		return push.Noop{}, nil
	}
}
