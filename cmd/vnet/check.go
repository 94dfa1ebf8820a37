package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"vnet/internal/arp"
	"vnet/internal/config"
	"vnet/internal/dao"
	"vnet/internal/database"
	"vnet/internal/logging"
	"vnet/internal/routing"
	"vnet/internal/tables"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "校验配置并加载路由表和ARP表",
	Long: `校验配置文件，路由器角色还会按配置加载路由表和ARP表并打印出来，
任何格式错误都以非零状态退出。不会打开任何接口。

示例:
  vnet check -c router.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runCheck(cmd); err != nil {
			exitWithError("校验失败", err)
		}
	},
}

func runCheck(cmd *cobra.Command) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "配置有效: %s，角色 %s，接口 %d 个\n", cfg.Hostname, cfg.Role, len(cfg.Interfaces))

	if cfg.Role != config.RoleRouter {
		return nil
	}

	known := make(map[string]bool, len(cfg.Interfaces))
	for _, iface := range cfg.Interfaces {
		known[iface.Name] = true
	}
	t := tables.New(func(name string) bool { return known[name] }, logging.NewNop(), nil)

	ctx := context.Background()
	var src tables.Source = tables.FileSource{RoutePath: cfg.Tables.Routes, ARPPath: cfg.Tables.ARP}
	if cfg.Tables.Source == config.SourceStore {
		db := database.NewManager(&database.Config{Type: "sqlite", FilePath: cfg.Tables.StorePath})
		if err := db.Initialize(ctx); err != nil {
			return err
		}
		defer db.Close()

		store := dao.NewTableDAO(db.GetDatabase())
		if err := store.Migrate(); err != nil {
			return err
		}
		src = tables.StoreSource{DAO: store}
	}

	if err := t.Load(ctx, src); err != nil {
		return err
	}

	snap := t.Snapshot()
	fmt.Fprintf(out, "\n路由表 (%d 条):\n", snap.Routes.Size())
	if err := routing.FormatRoutes(out, snap.Routes); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nARP表 (%d 条):\n", snap.ARP.Size())
	return arp.FormatEntries(out, snap.ARP)
}
