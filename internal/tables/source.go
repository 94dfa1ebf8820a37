package tables

import (
	"context"
	"fmt"
	"os"

	"vnet/internal/arp"
	"vnet/internal/dao"
	"vnet/internal/routing"
)

// FileSource 从文本文件加载
// ARPPath 为空时ARP表为空
type FileSource struct {
	RoutePath string
	ARPPath   string
}

// Load 读取并解析路由文件和ARP文件
func (s FileSource) Load(ctx context.Context) ([]routing.Route, []arp.Entry, error) {
	if s.RoutePath == "" {
		return nil, nil, fmt.Errorf("未配置路由文件")
	}

	rf, err := os.Open(s.RoutePath)
	if err != nil {
		return nil, nil, fmt.Errorf("打开路由文件失败: %w", err)
	}
	defer rf.Close()

	routes, err := routing.ParseRoutes(rf, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("解析路由文件 %s 失败: %w", s.RoutePath, err)
	}

	if s.ARPPath == "" {
		return routes, nil, nil
	}

	af, err := os.Open(s.ARPPath)
	if err != nil {
		return nil, nil, fmt.Errorf("打开ARP文件失败: %w", err)
	}
	defer af.Close()

	entries, err := arp.ParseEntries(af)
	if err != nil {
		return nil, nil, fmt.Errorf("解析ARP文件 %s 失败: %w", s.ARPPath, err)
	}
	return routes, entries, nil
}

func (s FileSource) String() string {
	return fmt.Sprintf("file:%s,%s", s.RoutePath, s.ARPPath)
}

// StoreSource 从持久化存储加载
type StoreSource struct {
	DAO *dao.TableDAO
}

// Load 读取存储中的路由表和ARP表
func (s StoreSource) Load(ctx context.Context) ([]routing.Route, []arp.Entry, error) {
	return s.DAO.Load(ctx)
}

func (s StoreSource) String() string {
	return "store"
}

// Save 把当前快照写入存储
func (t *AddressTables) Save(ctx context.Context, d *dao.TableDAO) error {
	snap := t.Snapshot()
	if err := d.Replace(ctx, snap.Routes.Routes(), snap.ARP.Entries()); err != nil {
		return fmt.Errorf("保存表失败: %w", err)
	}
	t.log.Info("表已保存: 路由 %d 条, ARP %d 条, 版本 %d",
		snap.Routes.Size(), snap.ARP.Size(), snap.Generation)
	return nil
}
