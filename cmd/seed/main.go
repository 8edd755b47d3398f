package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/repository"
	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/seed"
	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var maxJobs int
	var file string
	var name string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机用户, 2: 插入随机作业集合, 3: 从 CSV 导入作业集合)")
	flag.IntVar(&n, "n", 5, "要插入的记录数量")
	flag.IntVar(&maxJobs, "max-jobs", 20, "随机作业集合中作业数量的上限")
	flag.StringVar(&file, "f", "", "要导入的 CSV 文件，表头为 name,deadline,profit")
	flag.StringVar(&name, "name", "", "导入的作业集合名称，默认使用文件名")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

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

	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 {
			slog.Error("请输入合法的用户数量")
			return
		}

		cnt := 0
		for i := 0; i < n; i++ {
			user, err := utils.GenerateRandomUser(cfg.Seed.User.Password, cfg.Email.UserDomain)
			if err != nil {
				slog.Error("无法生成随机用户", slog.String("error", err.Error()))
				continue
			}

			if err := repo.CreateUser(context.Background(), user); err != nil {
				slog.Error("无法插入用户", slog.String("error", err.Error()))
				continue
			}

			cnt++
		}

		slog.Info("插入用户成功", slog.Int("count", cnt))
	case 2:
		if n <= 0 || maxJobs <= 0 {
			slog.Error("请输入合法的作业集合数量和作业数量上限")
			return
		}

		cnt := 0
		for i := 0; i < n; i++ {
			js := utils.GenerateRandomJobSet(maxJobs)
			if err := repo.CreateJobSet(context.Background(), js); err != nil {
				slog.Error("无法插入作业集合", slog.String("error", err.Error()))
				continue
			}

			cnt++
		}

		slog.Info("插入作业集合成功", slog.Int("count", cnt))
	case 3:
		if file == "" {
			slog.Error("请通过 -f 指定 CSV 文件")
			return
		}

		if _, err := seed.ImportJobSetFromCSV(context.Background(), repo, file, name, cfg.GA.MaxJobs); err != nil {
			slog.Error("导入作业集合失败", slog.String("error", err.Error()))
		}
	default:
		slog.Error("指定的操作非法")
	}
}
