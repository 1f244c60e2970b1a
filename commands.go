package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/kendall-kelly/procurement-api/config"
	"github.com/kendall-kelly/procurement-api/middleware"
	"github.com/kendall-kelly/procurement-api/models"
	"github.com/kendall-kelly/procurement-api/services"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 15 * time.Second

var rootCmd = &cobra.Command{
	Use:          "procurement-api",
	Short:        "Procurement workflow API",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Start the HTTP API server together with the overdue delivery reminder job`,
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a development token signed with JWT_SECRET",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().String("subject", "", "token subject (the user's auth id)")
	tokenCmd.Flags().String("role", "", "role claim, e.g. supervisor or procurement_manager")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")
	_ = tokenCmd.MarkFlagRequired("role")

	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
}

// bootstrap loads configuration and installs the process logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "build logger")
	}
	config.SetLogger(logger)
	return cfg, logger, nil
}

func openDatabase() (*gorm.DB, error) {
	if err := config.ConnectDatabase(); err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := models.AutoMigrate(db); err != nil {
		return nil, errors.Wrap(err, "migrate database")
	}
	config.L().Info("database migration completed")
	return db, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	_, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	_, err = openDatabase()
	return err
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.IsProduction() {
		return errors.New("development tokens cannot be issued in production")
	}
	subject, _ := cmd.Flags().GetString("subject")
	rawRole, _ := cmd.Flags().GetString("role")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	role, ok := workflow.ParseRole(rawRole)
	if !ok {
		return errors.Errorf("unknown role %q", rawRole)
	}
	token, err := middleware.IssueToken(cfg, subject, role, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase()
	if err != nil {
		return err
	}

	recorder := services.NewDBAuditRecorder(db)
	services.SetAuditRecorder(recorder)
	defer recorder.Wait()

	if cfg.RedisURL != "" {
		client, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		services.SetCounter(services.NewRedisCounter(client))
		logger.Info("using redis sequence counters")
	}

	if cfg.AWSS3Bucket != "" {
		if _, err := services.InitS3Store(ctx, cfg); err != nil {
			return errors.Wrap(err, "initialize attachment storage")
		}
		logger.Info("attachment storage ready", zap.String("bucket", cfg.AWSS3Bucket))
	} else {
		logger.Warn("AWS_S3_BUCKET not set, attachments are disabled")
	}

	auth, err := middleware.EnsureValidToken(cfg)
	if err != nil {
		return errors.Wrap(err, "set up authentication")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, auth),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	scheduler, err := startReminders(gctx, db, cfg.ReminderInterval)
	if err != nil {
		return err
	}
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			logger.Warn("stopping scheduler", zap.Error(err))
		}
	}()

	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve http")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse REDIS_URL")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "connect to redis")
	}
	return client, nil
}

// startReminders schedules the overdue delivery sweep.
func startReminders(ctx context.Context, db *gorm.DB, every time.Duration) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Wrap(err, "create scheduler")
	}
	reminders := services.NewReminderService(db)
	_, err = scheduler.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			sent, err := reminders.SendOverdueReminders(ctx, time.Now())
			if err != nil {
				config.L().Error("overdue reminder sweep failed", zap.Error(err))
				return
			}
			config.L().Info("overdue reminder sweep finished", zap.Int("orders", sent))
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, errors.Wrap(err, "schedule reminders")
	}
	scheduler.Start()
	return scheduler, nil
}
