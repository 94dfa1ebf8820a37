package dao

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"vnet/internal/arp"
	"vnet/internal/database"
	"vnet/internal/routing"
)

// TableDAO 静态路由表和ARP表的持久化访问
type TableDAO struct {
	db     database.Database
	routes *BaseDAOImpl[RouteModel]
	arps   *BaseDAOImpl[ARPModel]
}

// NewTableDAO 创建表存储DAO
func NewTableDAO(db database.Database) *TableDAO {
	return &TableDAO{
		db:     db,
		routes: NewBaseDAO[RouteModel](db, "position, id"),
		arps:   NewBaseDAO[ARPModel](db, "position, id"),
	}
}

// Migrate 创建或更新表结构
func (d *TableDAO) Migrate() error {
	return d.db.Migrate(&RouteModel{}, &ARPModel{})
}

// Replace 在一个事务中用给定内容整体替换两张表
func (d *TableDAO) Replace(ctx context.Context, routes []routing.Route, entries []arp.Entry) error {
	routeModels := make([]*RouteModel, len(routes))
	for i, r := range routes {
		routeModels[i] = NewRouteModel(i, r)
	}
	arpModels := make([]*ARPModel, len(entries))
	for i, e := range entries {
		arpModels[i] = NewARPModel(i, e)
	}

	return WithTransaction(ctx, d.db, func(tx database.Transaction) error {
		if err := d.routes.ReplaceAll(ctx, tx, routeModels); err != nil {
			return fmt.Errorf("保存路由表失败: %w", err)
		}
		if err := d.arps.ReplaceAll(ctx, tx, arpModels); err != nil {
			return fmt.Errorf("保存ARP表失败: %w", err)
		}
		return nil
	})
}

// Load 读取两张表，任一记录无法转换时整体失败
func (d *TableDAO) Load(ctx context.Context) ([]routing.Route, []arp.Entry, error) {
	routeModels, err := d.routes.FindAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("读取路由表失败: %w", err)
	}
	arpModels, err := d.arps.FindAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("读取ARP表失败: %w", err)
	}

	var errs error
	routes := make([]routing.Route, 0, len(routeModels))
	for _, m := range routeModels {
		r, err := m.ToRoute()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		routes = append(routes, r)
	}
	entries := make([]arp.Entry, 0, len(arpModels))
	for _, m := range arpModels {
		e, err := m.ToEntry()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		entries = append(entries, e)
	}
	if errs != nil {
		return nil, nil, errs
	}
	return routes, entries, nil
}

// Counts 返回两张表的记录数
func (d *TableDAO) Counts(ctx context.Context) (routes, entries int64, err error) {
	if routes, err = d.routes.Count(ctx); err != nil {
		return 0, 0, err
	}
	if entries, err = d.arps.Count(ctx); err != nil {
		return 0, 0, err
	}
	return routes, entries, nil
}
