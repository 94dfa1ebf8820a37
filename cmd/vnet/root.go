package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vnet/internal/config"
	"vnet/internal/logging"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "vnet",
	Short: "vnet - 静态IPv4路由器 / 以太网学习交换机数据面",
	Long: `vnet 按配置文件把一组网络接口组装成一台虚拟网络设备。

router 角色按静态路由表做最长前缀匹配转发，用静态ARP表解析下一跳MAC；
switch 角色学习源MAC地址，已知目的单播、未知目的泛洪，条目15秒未刷新即老化。`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "vnet.yaml", "配置文件路径")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig 读取配置并初始化全局日志
func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.NewLogger(logging.ParseLogLevel(cfg.Log.Level), cfg.Log.File)
	logging.SetDefault(logger)
	return cfg, logger, nil
}

func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "错误: %s\n", msg)
	}
	os.Exit(1)
}
