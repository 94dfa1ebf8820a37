// Package device 按配置组装路由器或交换机
package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"vnet/internal/bridge"
	"vnet/internal/capture"
	"vnet/internal/config"
	"vnet/internal/dao"
	"vnet/internal/database"
	"vnet/internal/forwarding"
	"vnet/internal/interfaces"
	"vnet/internal/logging"
	"vnet/internal/metrics"
	"vnet/internal/tables"
)

var (
	// ErrNotRouter 操作只对路由器角色有效
	ErrNotRouter = errors.New("设备不是路由器")
	// ErrAlreadyRunning 设备已经启动
	ErrAlreadyRunning = errors.New("设备已在运行")
	// ErrStopped 设备已经停止，资源已释放
	ErrStopped = errors.New("设备已停止")
)

// PortOpener 打开接口端口，默认为 interfaces.OpenPort
type PortOpener func(driver, name string) (interfaces.Port, net.HardwareAddr, error)

// Option 设备构造选项
type Option func(*Device)

// WithLogger 指定日志
func WithLogger(log *logging.Logger) Option {
	return func(d *Device) { d.log = log }
}

// WithMetrics 指定指标集合
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Device) { d.metrics = m }
}

// WithPortOpener 替换端口打开方式
func WithPortOpener(open PortOpener) Option {
	return func(d *Device) { d.openPort = open }
}

// Device 一台虚拟网络设备
// 接口、表和转发引擎在构造时按角色确定，运行期间不变。
type Device struct {
	cfg      *config.Config
	log      *logging.Logger
	metrics  *metrics.Metrics
	openPort PortOpener

	ifaces  *interfaces.Manager
	handler interfaces.FrameHandler

	// 路由器角色
	tables *tables.AddressTables
	router *forwarding.Engine
	source tables.Source

	// storeMu 保护 source、db、store 和 stopped
	storeMu sync.Mutex
	db      *database.Manager
	store   *dao.TableDAO
	stopped bool

	// 交换机角色
	macTable *bridge.Table
	bridge   *bridge.Engine

	metricsServer *metrics.Server
	capture       *capture.PacketCapture

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New 按配置创建设备并打开所有接口
func New(cfg *config.Config, opts ...Option) (*Device, error) {
	d := &Device{
		cfg:      cfg,
		openPort: interfaces.OpenPort,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logging.GetLogger()
	}
	d.log = d.log.Named(cfg.Hostname)

	d.ifaces = interfaces.NewManager(d.log, d.metrics)
	if err := d.openInterfaces(); err != nil {
		_ = d.ifaces.Close()
		return nil, err
	}

	switch cfg.Role {
	case config.RoleRouter:
		d.setupRouter()
	case config.RoleSwitch:
		d.setupSwitch()
	default:
		_ = d.ifaces.Close()
		return nil, fmt.Errorf("未知设备角色: %s", cfg.Role)
	}

	if cfg.Capture.File != "" {
		pc, err := capture.Open(cfg.Capture.File, cfg.Capture.SnapLen, d.log)
		if err != nil {
			_ = d.ifaces.Close()
			return nil, err
		}
		d.capture = pc
		d.handler = pc.Wrap(d.handler)
	}

	d.log.Info("设备 %s 创建完成，角色 %s，接口 %d 个", cfg.Hostname, cfg.Role, len(cfg.Interfaces))
	return d, nil
}

func (d *Device) openInterfaces() error {
	for _, ic := range d.cfg.Interfaces {
		addr, err := ic.Addr()
		if err != nil {
			return fmt.Errorf("接口 %s IP地址无效: %w", ic.Name, err)
		}
		mac, err := ic.HardwareAddr()
		if err != nil {
			return fmt.Errorf("接口 %s MAC地址无效: %w", ic.Name, err)
		}

		port, devMAC, err := d.openPort(ic.Driver, ic.Name)
		if err != nil {
			return fmt.Errorf("打开接口 %s 失败: %w", ic.Name, err)
		}
		if mac == nil {
			mac = devMAC
		}
		if mac == nil {
			_ = port.Close()
			return fmt.Errorf("接口 %s 没有MAC地址", ic.Name)
		}

		iface := interfaces.Interface{Name: ic.Name, IP: addr, MAC: mac}
		if err := d.ifaces.AddInterface(iface, port); err != nil {
			_ = port.Close()
			return err
		}
		d.log.Info("接口 %s 已打开 (%s)", iface.String(), ic.Driver)
	}
	return nil
}

func (d *Device) setupRouter() {
	d.tables = tables.New(d.ifaces.Known, d.log, d.metrics)
	d.router = forwarding.NewForwardingEngine(forwarding.Config{
		RecomputeChecksum: d.cfg.Router.RecomputeChecksum,
		CacheTTL:          d.cfg.Router.CacheTTL,
	}, d.tables, d.ifaces, d.log, d.metrics)
	d.tables.OnSwap(func(*tables.Snapshot) {
		d.router.FlushCache()
	})
	d.handler = d.router
}

func (d *Device) setupSwitch() {
	d.macTable = bridge.NewTable(d.cfg.Switch.EntryTimeout, d.log, d.metrics)
	d.bridge = bridge.NewSwitchEngine(d.macTable, d.ifaces, d.log, d.metrics)
	d.handler = d.bridge
}

// openStore 按需打开表存储
func (d *Device) openStore(ctx context.Context) (*dao.TableDAO, error) {
	d.storeMu.Lock()
	defer d.storeMu.Unlock()
	return d.openStoreLocked(ctx)
}

// openStoreLocked 调用方需持有 storeMu
func (d *Device) openStoreLocked(ctx context.Context) (*dao.TableDAO, error) {
	if d.stopped {
		return nil, ErrStopped
	}
	if d.store != nil {
		return d.store, nil
	}

	db := database.NewManager(&database.Config{
		Type:     "sqlite",
		FilePath: d.cfg.Tables.StorePath,
	})
	if err := db.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("打开表存储失败: %w", err)
	}
	store := dao.NewTableDAO(db.GetDatabase())
	if err := store.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("迁移表存储失败: %w", err)
	}

	d.db = db
	d.store = store
	return store, nil
}

// tableSource 返回配置的表来源
func (d *Device) tableSource(ctx context.Context) (tables.Source, error) {
	d.storeMu.Lock()
	defer d.storeMu.Unlock()

	if d.stopped {
		return nil, ErrStopped
	}
	if d.source != nil {
		return d.source, nil
	}
	switch d.cfg.Tables.Source {
	case config.SourceStore:
		store, err := d.openStoreLocked(ctx)
		if err != nil {
			return nil, err
		}
		d.source = tables.StoreSource{DAO: store}
	default:
		d.source = tables.FileSource{RoutePath: d.cfg.Tables.Routes, ARPPath: d.cfg.Tables.ARP}
	}
	return d.source, nil
}

// Start 启动设备
// 路由器先加载路由表和ARP表，加载失败时不启动。
// 收包循环和MAC老化任务在后台运行，直到 ctx 取消或调用 Stop。
func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return ErrAlreadyRunning
	}

	if d.router != nil {
		if err := d.loadTables(ctx); err != nil {
			return err
		}
	}

	if d.cfg.Metrics.Enabled && d.metrics != nil {
		srv := metrics.NewServer(d.cfg.Metrics.Listen, d.cfg.Metrics.Path, d.metrics, d.log)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		d.metricsServer = srv
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return d.ifaces.Run(gctx, d.handler)
	})
	if d.macTable != nil {
		g.Go(func() error {
			d.macTable.Run(gctx, d.cfg.Switch.SweepInterval, nil)
			return nil
		})
	}

	d.cancel = cancel
	d.group = g
	d.running = true
	d.log.Info("设备 %s 已启动", d.cfg.Hostname)
	return nil
}

func (d *Device) loadTables(ctx context.Context) error {
	src, err := d.tableSource(ctx)
	if err != nil {
		return err
	}
	return d.tables.Load(ctx, src)
}

// Wait 等待设备运行结束，返回收包循环的错误
func (d *Device) Wait() error {
	d.mu.Lock()
	g := d.group
	d.mu.Unlock()

	if g == nil {
		return nil
	}
	return g.Wait()
}

// Stop 停止设备并释放所有资源
func (d *Device) Stop() error {
	d.mu.Lock()
	cancel, g := d.cancel, d.group
	d.cancel, d.group = nil, nil
	d.running = false
	d.mu.Unlock()

	var errs error
	if cancel != nil {
		cancel()
		if err := g.Wait(); err != nil {
			errs = multierr.Append(errs, err)
		}
	} else if err := d.ifaces.Close(); err != nil {
		errs = multierr.Append(errs, err)
	}

	if d.metricsServer != nil {
		if err := d.metricsServer.Stop(context.Background()); err != nil {
			errs = multierr.Append(errs, err)
		}
		d.metricsServer = nil
	}

	if d.capture != nil {
		if err := d.capture.Close(); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	d.storeMu.Lock()
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			errs = multierr.Append(errs, err)
		}
		d.db, d.store = nil, nil
	}
	d.source = nil
	d.stopped = true
	d.storeMu.Unlock()

	d.log.Info("设备 %s 已停止", d.cfg.Hostname)
	return errs
}

// Reload 从配置的来源重新加载路由表和ARP表
// 失败时继续使用原来的表。
func (d *Device) Reload(ctx context.Context) error {
	if d.router == nil {
		return ErrNotRouter
	}
	return d.loadTables(ctx)
}

// Save 把当前生效的表写入持久化存储
func (d *Device) Save(ctx context.Context) error {
	if d.router == nil {
		return ErrNotRouter
	}
	store, err := d.openStore(ctx)
	if err != nil {
		return err
	}
	return d.tables.Save(ctx, store)
}

// Config 返回设备配置
func (d *Device) Config() *config.Config {
	return d.cfg
}

// Role 返回设备角色
func (d *Device) Role() string {
	return d.cfg.Role
}

// IsRunning 设备是否在运行
func (d *Device) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Interfaces 返回接口管理器
func (d *Device) Interfaces() *interfaces.Manager {
	return d.ifaces
}

// Tables 返回路由表和ARP表，交换机为nil
func (d *Device) Tables() *tables.AddressTables {
	return d.tables
}

// Router 返回路由转发引擎，交换机为nil
func (d *Device) Router() *forwarding.Engine {
	return d.router
}

// Switch 返回交换引擎，路由器为nil
func (d *Device) Switch() *bridge.Engine {
	return d.bridge
}

// Capture 返回帧捕获器，未配置时为nil
func (d *Device) Capture() *capture.PacketCapture {
	return d.capture
}

// MACTable 返回MAC表，路由器为nil
func (d *Device) MACTable() *bridge.Table {
	return d.macTable
}
