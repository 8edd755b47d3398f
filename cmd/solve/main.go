package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/utils"
)

func main() {
	defaults := scheduler.DefaultParameters()

	var file string
	var crossover string
	var verbose bool
	var seed int64
	params := defaults

	flag.StringVar(&file, "f", "", "作业文件，每行为 \"名称 截止时间 收益\"，默认从标准输入读取")
	flag.IntVar(&params.PopulationSize, "population", defaults.PopulationSize, "种群大小")
	flag.IntVar(&params.MaxGenerations, "generations", defaults.MaxGenerations, "迭代次数")
	flag.IntVar(&params.TournamentSize, "tournament", defaults.TournamentSize, "锦标赛规模")
	flag.Float64Var(&params.MutationRate, "mutation", defaults.MutationRate, "每个位置的变异概率")
	flag.IntVar(&params.StallGenerations, "stall", defaults.StallGenerations, "最优值连续多少代没有提升就停止，0 表示不启用")
	flag.StringVar(&crossover, "crossover", string(defaults.Crossover), "交叉方式 (append, ordered)")
	flag.Int64Var(&seed, "seed", 0, "随机数种子，不指定时使用当前时间")
	flag.BoolVar(&verbose, "v", false, "输出每一代的调试日志")
	flag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	jobs, err := readJobs(file)
	if err != nil {
		logger.Error("无法读取作业", slog.String("error", err.Error()))
		os.Exit(1)
	}

	params.Crossover = scheduler.CrossoverStrategy(crossover)
	params.Seed = resolveSeed(seed, flagPassed("seed"), time.Now())

	s, err := scheduler.New(&params, jobs)
	if err != nil {
		logger.Error("参数不合法", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// CTRL+C 时输出目前为止的最优结果
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := s.Schedule(ctx)
	if err != nil {
		logger.Warn("运行被中断", slog.String("error", err.Error()))
	}

	fmt.Println(scheduler.Summary(jobs, result.Best))
	logger.Info("运行结束",
		slog.Int("generations", result.GenerationsRun),
		slog.String("stopReason", result.StopReason),
		slog.Int64("seed", result.Seed),
	)
}

// readJobs 从文件读取作业，file 为空时读取标准输入
func readJobs(file string) ([]domain.Job, error) {
	var in io.Reader = os.Stdin
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		in = f
	}

	return utils.ReadJobLines(in)
}

func flagPassed(name string) bool {
	passed := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}

// resolveSeed 显式指定的种子（包括 0）原样使用，否则取当前时间
func resolveSeed(seed int64, explicit bool, now time.Time) int64 {
	if explicit {
		return seed
	}
	return now.UnixNano()
}
