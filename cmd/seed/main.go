package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/config"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/repository"
	"github.com/sysu-ecnc-dev/roster-manager/backend/internal/seed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var siteID int64
	var weekStartFlag string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 创建演示站点, 2: 插入随机员工, 3: 插入随机当周约束)")
	flag.IntVar(&n, "n", 5, "要插入的员工数量")
	flag.Int64Var(&siteID, "site-id", 0, "目标站点 ID")
	flag.StringVar(&weekStartFlag, "week-start", "", "当周约束的周起始日期 (2006-01-02)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		seed.SeedDemoSite(repo)
	case 2:
		if siteID <= 0 {
			slog.Error("请通过 -site-id 指定合法的站点 ID")
			return
		}
		if n <= 0 {
			slog.Error("请输入合法的员工数量")
			return
		}
		cnt := seed.SeedEmployees(repo, cfg, siteID, n)
		slog.Info("插入员工成功", slog.Int("count", cnt))
	case 3:
		if siteID <= 0 {
			slog.Error("请通过 -site-id 指定合法的站点 ID")
			return
		}
		weekStart, err := time.Parse("2006-01-02", weekStartFlag)
		if err != nil {
			slog.Error("week-start 格式错误，应为 2006-01-02")
			return
		}
		cnt := seed.SeedWeeklyConstraints(repo, siteID, weekStart)
		slog.Info("插入当周约束成功", slog.Int("count", cnt))
	default:
		slog.Error("指定的操作非法")
	}
}
