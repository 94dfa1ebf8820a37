package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vnet/internal/cli"
	"vnet/internal/device"
	"vnet/internal/metrics"
)

var runConsole bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "按配置启动设备",
	Long: `按配置启动路由器或交换机，直到收到 SIGINT/SIGTERM 或在控制台输入 exit。

示例:
  vnet run -c router.yaml
  vnet run -c switch.yaml --console`,
	Run: func(cmd *cobra.Command, args []string) {
		runDevice(cmd)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runConsole, "console", false, "启动交互控制台（覆盖 console.enabled）")
}

func runDevice(cmd *cobra.Command) {
	cfg, logger, err := loadConfig()
	if err != nil {
		exitWithError("加载配置失败", err)
	}
	defer func() {
		_ = logger.Close()
	}()
	if cmd.Flags().Changed("console") {
		cfg.Console.Enabled = runConsole
	}

	logger.Info("vnet %s 启动中，角色 %s", version, cfg.Role)

	d, err := device.New(cfg, device.WithLogger(logger), device.WithMetrics(metrics.New()))
	if err != nil {
		logger.Fatal("创建设备失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Start(ctx); err != nil {
		_ = d.Stop()
		logger.Fatal("启动设备失败: %v", err)
	}

	// 收包循环异常退出时同样结束进程
	runDone := make(chan error, 1)
	go func() {
		runDone <- d.Wait()
	}()

	var consoleExit <-chan bool
	if cfg.Console.Enabled {
		console := cli.NewCLI(d, os.Stdout, cfg.Console.HistoryFile)
		consoleExit = console.GetExitChan()
		go console.Start()
	}

	select {
	case <-ctx.Done():
		// 收到系统信号
	case <-consoleExit:
		// 控制台主动退出
	case err := <-runDone:
		if err != nil {
			logger.Error("设备运行异常: %v", err)
		}
	}

	logger.Info("正在关闭 vnet...")
	if err := d.Stop(); err != nil {
		logger.Error("关闭设备失败: %v", err)
	}
	logger.Info("vnet 已关闭")
}
