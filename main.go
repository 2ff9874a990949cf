package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/isyourdayok/backend/chain"
	"github.com/isyourdayok/backend/config"
	"github.com/isyourdayok/backend/models"
	"github.com/isyourdayok/backend/routes"
	"github.com/isyourdayok/backend/services"
	"github.com/isyourdayok/backend/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	log := utils.Logger
	defer func() { _ = log.Sync() }()

	db := config.InitDatabase(models.All()...)
	rc := utils.AvailableRedis()

	var (
		authority services.MintingAuthority
		reader    services.PointsReader
	)
	if cfg.ChainEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		client, err := chain.Dial(ctx, cfg, log.Named("chain"))
		cancel()
		if err != nil {
			utils.Sugar.Fatalf("chain: %v", err)
		}
		defer client.Close()

		nft, err := client.NFT(cfg.NFTContract, cfg.MinterPrivateKey)
		if err != nil {
			utils.Sugar.Fatalf("nft contract: %v", err)
		}
		authority = nft
		if cfg.PointsContract != "" {
			points, err := client.Points(cfg.PointsContract)
			if err != nil {
				utils.Sugar.Fatalf("points contract: %v", err)
			}
			reader = points
		}
	} else {
		utils.Sugar.Warn("chain not configured: minting disabled, stats served from database")
	}

	statsOpts := []services.StatsOption{
		services.WithStatsCache(utils.NewCache(rc), time.Duration(cfg.StatsCacheSeconds)*time.Second),
		services.WithStatsLogger(log.Named("stats")),
	}
	if reader != nil {
		statsOpts = append(statsOpts, services.WithPointsReader(reader))
	}
	stats := services.NewStatsService(db, statsOpts...)
	chat := services.NewChatService(db)
	authz := services.NewAuthorizer(db, cfg.RolePolicy)
	if err := authz.SeedAdmins(context.Background(), cfg.AdminAddresses); err != nil {
		utils.Sugar.Fatalf("seed admins: %v", err)
	}
	reconciler := services.NewReconciler(db, authority, stats,
		time.Duration(cfg.ReconcileGraceSec)*time.Second, cfg.ReconcileBatchSize, log.Named("reconcile"))

	deps := routes.Deps{
		Users:      services.NewUserService(db),
		Activities: services.NewActivityService(db, stats, log.Named("activity")),
		Stats:      stats,
		Mints: services.NewMintCoordinator(db, services.MintConfig{
			Authority: authority,
			Stats:     stats,
			Locker:    utils.NewLocker(rc),
			Chat:      chat,
			BaseURL:   cfg.BaseURL,
			LockTTL:   time.Duration(cfg.ChainTimeoutSec)*time.Second + time.Minute,
			Logger:    log.Named("mint"),
		}),
		Reconciler: reconciler,
		Authz:      authz,
		Chat:       chat,
		Nonces:     utils.NewNonceStore(rc, 10*time.Minute),
		Revoked:    utils.NewRevocations(rc),
	}
	r := routes.SetupRouter(cfg, deps)

	srv := utils.NewServer(":"+cfg.AppPort, r)
	if authority != nil || reader != nil {
		job, err := services.ScheduleReconciliation(cfg.ReconcileSpec, reconciler, 2*time.Minute)
		if err != nil {
			utils.Sugar.Fatalf("%v", err)
		}
		job.Start()
		srv.OnStop(func(ctx context.Context) {
			select {
			case <-job.Stop().Done():
			case <-ctx.Done():
			}
		})
	}

	utils.Logger.Info("starting server", zap.String("port", cfg.AppPort), zap.Bool("minting", authority != nil))
	if err := srv.Run(); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
