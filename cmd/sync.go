package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"Melodex/cache"
	"Melodex/config"
	"Melodex/core/library"
	"Melodex/db"
	"Melodex/logger"
	"Melodex/model"
	"Melodex/repository"
)

var syncFolderIDs []int64

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "执行一次音乐库同步",
	Long:  `检测受监控文件夹的变化，重新扫描有变化的文件夹，并在扫描完成后执行一次重复检测`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, cleanup, err := buildController()
		if err != nil {
			return err
		}
		defer cleanup()

		summary, err := ctrl.Sync(context.Background(), syncFolderIDs)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		if summary.Empty() {
			fmt.Println("Library is up to date, nothing to scan.")
			return nil
		}
		fmt.Printf("Session %s: %d folders scanned, %d failed, %d duplicate groups, %d tracks marked duplicate.\n",
			summary.SessionID, summary.FoldersScanned, summary.FoldersFailed,
			summary.DuplicateGroups, summary.TracksMarkedDuplicate)
		for _, outcome := range summary.PerFolder {
			if outcome.Status == model.FolderScanFailed {
				fmt.Printf("  FAILED %s: %s\n", outcome.Name, outcome.Error)
			}
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().Int64SliceVar(&syncFolderIDs, "folder", nil, "限定同步到指定的文件夹ID，可重复")
	rootCmd.AddCommand(syncCmd)
}

// buildController wires the sync pipeline for one-shot CLI runs. Redis and
// MinIO are optional here: a missing cache only disables stats caching.
func buildController() (*library.Controller, func(), error) {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, MaxSize: 50, MaxBackups: 3, MaxAge: 14})

	if err := db.ConnectDB(cfg); err != nil {
		return nil, nil, err
	}
	if err := db.ConnectGormDB(cfg); err != nil {
		db.CloseDB()
		return nil, nil, err
	}
	if err := db.AutoMigrateModels(&model.User{}, &model.Folder{}, &model.Track{}); err != nil {
		db.CloseGormDB()
		db.CloseDB()
		return nil, nil, err
	}
	redisOK := db.ConnectRedis(cfg) == nil

	folderRepo := repository.NewMySQLFolderRepository()
	trackRepo := repository.NewMySQLTrackRepository()
	stats := cache.NewLibraryStatsCache(db.RedisClient, 0)

	fsAccess := library.LocalFileAccess{}
	detector := library.NewChangeDetector(fsAccess, cfg.AudioExtensions)
	scanner := library.NewScanner(fsAccess, library.OpenTokens{}, nil, trackRepo, folderRepo, nil, cfg.AudioExtensions)
	duplicates := library.NewDuplicateDetector(trackRepo)
	orchestrator := library.NewOrchestrator(detector, scanner, duplicates, cfg.ScanConcurrency, nil)
	ctrl := library.NewController(folderRepo, orchestrator, stats)

	cleanup := func() {
		if redisOK {
			db.CloseRedis()
		}
		db.CloseGormDB()
		db.CloseDB()
	}
	return ctrl, cleanup, nil
}
