// Package config 设备配置：配置文件 + 环境变量覆盖 + 默认值
package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// 设备角色
const (
	RoleRouter = "router"
	RoleSwitch = "switch"
)

// 表来源
const (
	SourceFile  = "file"
	SourceStore = "store"
)

// 接口驱动
const (
	DriverChannel = "channel"
	DriverTap     = "tap"
)

// EnvPrefix 环境变量前缀，如 VNET_LOG_LEVEL 覆盖 log.level
const EnvPrefix = "VNET"

// ErrInvalidConfig 配置校验失败
var ErrInvalidConfig = errors.New("配置无效")

// InterfaceConfig 接口配置
type InterfaceConfig struct {
	Name string `mapstructure:"name" json:"name"`
	// IP 接口IPv4地址，路由器角色必填
	IP string `mapstructure:"ip" json:"ip,omitempty"`
	// MAC 为空时 tap 驱动使用内核分配的地址
	MAC    string `mapstructure:"mac" json:"mac,omitempty"`
	Driver string `mapstructure:"driver" json:"driver,omitempty"`
}

// Addr 解析接口IP，未配置时返回零值
func (c InterfaceConfig) Addr() (netip.Addr, error) {
	if c.IP == "" {
		return netip.Addr{}, nil
	}
	addr, err := netip.ParseAddr(c.IP)
	if err != nil {
		return netip.Addr{}, err
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%s 不是IPv4地址", c.IP)
	}
	return addr, nil
}

// HardwareAddr 解析接口MAC，未配置时返回nil
func (c InterfaceConfig) HardwareAddr() (net.HardwareAddr, error) {
	if c.MAC == "" {
		return nil, nil
	}
	mac, err := net.ParseMAC(c.MAC)
	if err != nil {
		return nil, err
	}
	if len(mac) != 6 {
		return nil, fmt.Errorf("%s 不是以太网MAC地址", c.MAC)
	}
	return mac, nil
}

// TablesConfig 路由表和ARP表来源
type TablesConfig struct {
	Routes    string `mapstructure:"routes" json:"routes"`
	ARP       string `mapstructure:"arp" json:"arp"`
	Source    string `mapstructure:"source" json:"source"`
	StorePath string `mapstructure:"store_path" json:"store_path"`
}

// RouterConfig 路由器角色参数
type RouterConfig struct {
	RecomputeChecksum bool          `mapstructure:"recompute_checksum" json:"recompute_checksum"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl" json:"cache_ttl"`
}

// SwitchConfig 交换机角色参数
type SwitchConfig struct {
	EntryTimeout  time.Duration `mapstructure:"entry_timeout" json:"entry_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" json:"sweep_interval"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
	File  string `mapstructure:"file" json:"file"`
}

// MetricsConfig 指标服务配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Listen  string `mapstructure:"listen" json:"listen"`
	Path    string `mapstructure:"path" json:"path"`
}

// ConsoleConfig 交互控制台配置
type ConsoleConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	HistoryFile string `mapstructure:"history_file" json:"history_file"`
}

// CaptureConfig 入站帧捕获，File 为空时不捕获
type CaptureConfig struct {
	File    string `mapstructure:"file" json:"file"`
	SnapLen int    `mapstructure:"snaplen" json:"snaplen"`
}

// Config 设备配置
type Config struct {
	Role       string            `mapstructure:"role" json:"role"`
	Hostname   string            `mapstructure:"hostname" json:"hostname"`
	Interfaces []InterfaceConfig `mapstructure:"interfaces" json:"interfaces"`
	Tables     TablesConfig      `mapstructure:"tables" json:"tables"`
	Router     RouterConfig      `mapstructure:"router" json:"router"`
	Switch     SwitchConfig      `mapstructure:"switch" json:"switch"`
	Log        LogConfig         `mapstructure:"log" json:"log"`
	Metrics    MetricsConfig     `mapstructure:"metrics" json:"metrics"`
	Console    ConsoleConfig     `mapstructure:"console" json:"console"`
	Capture    CaptureConfig     `mapstructure:"capture" json:"capture"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("role", RoleRouter)
	v.SetDefault("hostname", "vnet")
	v.SetDefault("tables.routes", "")
	v.SetDefault("tables.arp", "")
	v.SetDefault("tables.source", SourceFile)
	v.SetDefault("tables.store_path", "data/vnet.db")
	v.SetDefault("router.recompute_checksum", true)
	v.SetDefault("router.cache_ttl", 30*time.Second)
	v.SetDefault("switch.entry_timeout", 15*time.Second)
	v.SetDefault("switch.sweep_interval", time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "127.0.0.1:9108")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("console.enabled", false)
	v.SetDefault("console.history_file", "")
	v.SetDefault("capture.file", "")
	v.SetDefault("capture.snaplen", 65535)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	return v
}

// Default 返回只包含默认值的配置，环境变量同样生效
func Default() (*Config, error) {
	var cfg Config
	if err := newViper().Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析默认配置失败: %w", err)
	}
	return &cfg, nil
}

// Load 从 path 读取配置文件（JSON/YAML/TOML，按扩展名识别）
// 读取后依次叠加环境变量和默认值，并做完整校验。
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	for i := range cfg.Interfaces {
		if cfg.Interfaces[i].Driver == "" {
			cfg.Interfaces[i].Driver = DriverChannel
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置，返回所有问题
func (c *Config) Validate() error {
	var errs error
	invalid := func(format string, args ...interface{}) {
		errs = multierr.Append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}

	switch c.Role {
	case RoleRouter, RoleSwitch:
	default:
		invalid("未知角色 %q，可选 router/switch", c.Role)
	}

	if len(c.Interfaces) == 0 {
		invalid("至少需要一个接口")
	}
	seen := make(map[string]bool, len(c.Interfaces))
	for i, iface := range c.Interfaces {
		if iface.Name == "" {
			invalid("第%d个接口缺少名称", i+1)
			continue
		}
		if seen[iface.Name] {
			invalid("接口 %s 重复", iface.Name)
		}
		seen[iface.Name] = true

		addr, err := iface.Addr()
		if err != nil {
			invalid("接口 %s IP地址: %v", iface.Name, err)
		}
		if c.Role == RoleRouter && err == nil && !addr.IsValid() {
			invalid("路由器接口 %s 必须配置IP地址", iface.Name)
		}
		if _, err := iface.HardwareAddr(); err != nil {
			invalid("接口 %s MAC地址: %v", iface.Name, err)
		}

		switch iface.Driver {
		case DriverChannel:
			if iface.MAC == "" {
				invalid("channel 接口 %s 必须配置MAC地址", iface.Name)
			}
		case DriverTap:
		default:
			invalid("接口 %s 驱动 %q 未知，可选 channel/tap", iface.Name, iface.Driver)
		}
	}

	if c.Role == RoleRouter {
		switch c.Tables.Source {
		case SourceFile:
			if c.Tables.Routes == "" {
				invalid("tables.routes 未配置")
			}
		case SourceStore:
			if c.Tables.StorePath == "" {
				invalid("tables.store_path 未配置")
			}
		default:
			invalid("tables.source %q 未知，可选 file/store", c.Tables.Source)
		}
		if c.Router.CacheTTL < 0 {
			invalid("router.cache_ttl 不能为负数")
		}
	}

	if c.Switch.EntryTimeout <= 0 {
		invalid("switch.entry_timeout 必须大于0")
	}
	if c.Switch.SweepInterval <= 0 {
		invalid("switch.sweep_interval 必须大于0")
	}

	if c.Capture.SnapLen < 0 {
		invalid("capture.snaplen 不能为负数")
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		invalid("metrics.listen 未配置")
	}

	return errs
}
